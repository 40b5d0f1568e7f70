// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/dkansync/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewRuns lists recent runs.
	ViewRuns ViewType = iota
	// ViewRunDetail shows one run with its plan.
	ViewRunDetail
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewRuns:
		return "runs"
	case ViewRunDetail:
		return "run_detail"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// RunsLoaded carries the run list back to the model.
type RunsLoaded struct {
	Runs []domain.Run
	Err  error
}

// RunSelected is sent when a run in the list is opened.
type RunSelected struct {
	ID string
}

// RunLoaded carries one run back to the model.
type RunLoaded struct {
	Run *domain.Run
	Err error
}

// CacheCleared reports the outcome of clearing the response cache.
type CacheCleared struct {
	Err error
}
