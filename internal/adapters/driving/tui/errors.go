package tui

import "errors"

// ErrMissingMaintenance is returned when the run history service is not provided.
var ErrMissingMaintenance = errors.New("tui: run history service is required")
