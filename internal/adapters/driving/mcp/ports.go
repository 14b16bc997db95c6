package mcp

import (
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Search answers global similarity queries.
	Search driving.SearchService

	// Context retrieves evidence inside one document. Optional.
	Context driving.ContextRetriever

	// Chat answers questions with verification. Optional.
	Chat driving.ChatService

	// Records reads single records and the timeline. Optional.
	Records driving.RecordService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
