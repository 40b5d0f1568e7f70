// Package tui provides an interactive browser for the run history.
// It is a driving adapter like the cli package.
package tui

import (
	"github.com/custodia-labs/dkansync/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Maintenance lists runs and clears the response cache.
	Maintenance driving.Maintenance
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Maintenance == nil {
		return ErrMissingMaintenance
	}
	return nil
}
