package httpapi

import (
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// Ports aggregates the driving ports the HTTP API needs.
type Ports struct {
	// Search is required.
	Search driving.SearchService

	// Records is required.
	Records driving.RecordService

	// Chat serves the streaming chat endpoints. Without it they answer 503.
	Chat driving.ChatService

	// Summary serves the summary and task endpoints. Without it they answer 503.
	Summary driving.SummaryService
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.Records == nil {
		return ErrMissingRecordService
	}
	return nil
}
