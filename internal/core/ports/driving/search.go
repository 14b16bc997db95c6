package driving

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search performs hybrid search across all records.
	// An empty query performs a relational scan with unranked results.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// ContextRetriever ranks the chunks of a single document against a query.
type ContextRetriever interface {
	// GetContext returns up to topK snippets from the children of parentID,
	// most similar first. A document without children yields an empty slice.
	GetContext(ctx context.Context, parentID int64, query string, topK int) ([]domain.EvidenceSnippet, error)
}
