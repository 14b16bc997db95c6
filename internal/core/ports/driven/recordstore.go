package driven

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// RecordStore persists records and their parent/child links.
type RecordStore interface {
	// Save inserts a record when ID is zero, otherwise updates it.
	// The assigned ID is written back into the record.
	Save(ctx context.Context, record *domain.Record) error

	// Get retrieves a record by ID. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id int64) (*domain.Record, error)

	// GetMany retrieves the records with the given IDs in a single round trip.
	// Missing IDs are skipped. Order is unspecified.
	GetMany(ctx context.Context, ids []int64) ([]domain.Record, error)

	// ChildIDs lists the chunk records of a parent in insertion order.
	ChildIDs(ctx context.Context, parentID int64) ([]int64, error)

	// Scan lists records matching the filter, newest effective time first.
	Scan(ctx context.Context, filter ScanFilter) ([]domain.Record, error)

	// Delete removes records by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids ...int64) error
}

// ScanFilter configures a relational scan.
type ScanFilter struct {
	// Options holds the shared search predicates.
	Options domain.SearchOptions

	// ExcludeHidden drops hidden records such as document chunks.
	ExcludeHidden bool

	// Tag keeps only records carrying this tag. Empty means any.
	Tag string

	// Offset skips the first results.
	Offset int
}
