package driven

import (
	"context"

	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// Spreadsheet reads and writes sheets. The format follows the file extension.
type Spreadsheet interface {
	// Read loads the first worksheet. The first line is the header.
	Read(path string) (*domain.Sheet, error)

	// Write replaces the file with the sheet.
	Write(path string, sheet *domain.Sheet) error
}

// ResponseCache stores raw portal responses keyed by request.
type ResponseCache interface {
	// Get returns a cached body and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a body.
	Put(ctx context.Context, key string, body []byte) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}

// RunStore persists the history of import and export runs.
type RunStore interface {
	// Save stores or updates a run.
	Save(ctx context.Context, run *domain.Run) error

	// Get retrieves a run by id.
	Get(ctx context.Context, id string) (*domain.Run, error)

	// List returns the most recent runs first, at most limit (0 = all).
	List(ctx context.Context, limit int) ([]domain.Run, error)
}

// FileWatcher signals changes to a file.
type FileWatcher interface {
	// Watch emits after each write to path until ctx is done.
	Watch(ctx context.Context, path string) (<-chan struct{}, error)
}
