package driven

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// VectorIndex stores one embedding per record and answers approximate
// nearest-neighbour queries. Results need not be exact.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a record.
	Upsert(ctx context.Context, recordID int64, embedding []float32) error

	// Delete removes the vectors for the given records. Missing IDs are ignored.
	Delete(ctx context.Context, recordIDs ...int64) error

	// NearestNeighbors returns up to k hits ordered by ascending distance.
	NearestNeighbors(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Lookup returns the stored vectors for the given records.
	// Records without a vector are absent from the result.
	Lookup(ctx context.Context, recordIDs []int64) ([]domain.EmbeddingEntry, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// RecordID is the matched record.
	RecordID int64

	// Distance is the cosine distance (0 = identical, 2 = opposite).
	Distance float64
}
