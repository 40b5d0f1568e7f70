package driving

import (
	"context"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// PortalReport summarises a compatibility check against the portal.
type PortalReport struct {
	URL              string
	Datasets         int
	Resources        int
	ExtensionUsage   map[string]int
	LoginOK          bool
	LoginError       string
	PackageSchemaErr string
	NodeSchemaErr    string
	SampleNodeID     string
}

// Compatible reports whether all schema checks passed.
func (r *PortalReport) Compatible() bool {
	return r.PackageSchemaErr == "" && r.NodeSchemaErr == ""
}

// SheetReport describes a spreadsheet header.
type SheetReport struct {
	Path             string
	Rows             int
	Datasets         int
	Resources        int
	MissingDataset   []string
	MissingResource  []string
	DatasetOnly      bool
	ExtensionColumns []string
	UnknownColumns   []string
	RecordErrors     []string
}

// LinkReport is the outcome of probing one url found in a sheet.
type LinkReport struct {
	Row    int
	Column string
	URL    string
	Status string
	OK     bool
}

// RowDifference is a column whose value changed in a round trip.
type RowDifference struct {
	Column   string
	Source   string
	Exported string

	// Missing is set when the exported row lacks the column.
	Missing bool
}

// Checker runs diagnostics against configuration, portal and sheets.
type Checker interface {
	// CheckPortal validates connectivity, login and document structure.
	CheckPortal(ctx context.Context) (*PortalReport, error)

	// CheckSheet parses a spreadsheet without contacting the portal.
	CheckSheet(ctx context.Context, path string) (*SheetReport, error)

	// CheckLinks probes every url in non-resource-url cells.
	CheckLinks(ctx context.Context, path string) ([]LinkReport, error)

	// CompareRows lists differences between a source row and its re-export,
	// ignoring server-assigned columns.
	CompareRows(source, exported *domain.Row) []RowDifference
}

// Maintenance exposes run history and the response cache.
type Maintenance interface {
	// Runs lists recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]domain.Run, error)

	// Run retrieves one run.
	Run(ctx context.Context, id string) (*domain.Run, error)

	// ClearCache drops all cached portal responses.
	ClearCache(ctx context.Context) error
}
