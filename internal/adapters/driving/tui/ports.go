// Package tui provides an interactive terminal user interface for NeuroVault.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI calls.
// Only Search is required; views whose port is missing report it when opened.
type Ports struct {
	// Search ranks records against a query.
	Search driving.SearchService

	// Chat streams verified answers.
	Chat driving.ChatService

	// Records reads, deletes and pages through records.
	Records driving.RecordService

	// Settings manages application settings.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
