package driving

import (
	"context"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// ImportRequest describes one spreadsheet → portal run.
// Zero values fall back to the configured settings.
type ImportRequest struct {
	// Path is the spreadsheet to read.
	Path string

	// DryRun computes the plan without writing to the portal.
	DryRun bool

	// ForceUpdate rewrites matched resources even when unchanged.
	ForceUpdate bool

	// SkipResources processes dataset rows only.
	SkipResources bool

	// DatasetIDs restricts the run to rows with these ids.
	DatasetIDs []string

	// Limit stops after this many datasets.
	Limit int
}

// Importer writes spreadsheet rows to the portal.
type Importer interface {
	// Import runs the import and returns the finished run record.
	// A non-nil error is a run-halting *domain.AbortError or an I/O failure.
	Import(ctx context.Context, req ImportRequest) (*domain.Run, error)
}

// ExportRequest describes one portal → spreadsheet run.
type ExportRequest struct {
	// Path is the spreadsheet to write.
	Path string

	// Overwrite re-exports datasets already present in Path.
	Overwrite bool

	// CheckLinks probes every resource url.
	CheckLinks bool

	// Detailed fetches resource nodes for the detailed columns.
	Detailed bool

	// Download stores resource files in the download directory.
	Download bool

	// SkipResources writes dataset rows only.
	SkipResources bool

	// DatapackagePath, when set, also writes a data package descriptor.
	DatapackagePath string

	// Cached reads portal responses through the response cache.
	Cached bool

	DatasetIDs []string
	Limit      int
}

// Exporter writes portal content to a spreadsheet.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) (*domain.Run, error)
}
