package driving

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// SummaryService digests recent records and tracks the tasks it finds.
type SummaryService interface {
	// Latest returns the most recent summary, generating one when none exists.
	Latest(ctx context.Context) (*domain.Summary, error)

	// Refresh builds a new summary from the latest records and stores the
	// extracted tasks and events as records.
	Refresh(ctx context.Context) (*domain.Summary, error)

	// Tasks lists task records, newest first.
	Tasks(ctx context.Context, includeCompleted bool) ([]domain.Record, error)

	// CompleteTask marks a task done, or open again when completed is false.
	CompleteTask(ctx context.Context, id int64, completed bool) (*domain.Record, error)
}
