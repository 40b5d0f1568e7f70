package domain

import "time"

// RunKind identifies the direction of a run.
type RunKind string

// Run kinds.
const (
	RunImport RunKind = "import"
	RunExport RunKind = "export"
)

// RunStats counts what a run did.
type RunStats struct {
	DatasetsCreated    int
	DatasetsUpdated    int
	DatasetsSkipped    int
	DatasetsExported   int
	ResourcesCreated   int
	ResourcesUpdated   int
	ResourcesDeleted   int
	ResourcesUnchanged int
	RecordErrors       int
	Warnings           int
}

// Add accumulates the counts of the operations in a plan.
func (s *RunStats) Add(ops []Operation) {
	for _, op := range ops {
		switch op.Kind {
		case OpCreate:
			s.ResourcesCreated++
		case OpUpdate:
			s.ResourcesUpdated++
		case OpDelete:
			s.ResourcesDeleted++
		case OpNoOp:
			s.ResourcesUnchanged++
		}
	}
}

// Run records one import or export.
type Run struct {
	ID         string
	Kind       RunKind
	File       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      RunStats
	Entries    []PlanEntry

	// Error holds the abort message of a failed run.
	Error string
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without aborting.
func (r *Run) Succeeded() bool {
	return r.Error == "" && !r.FinishedAt.IsZero()
}
