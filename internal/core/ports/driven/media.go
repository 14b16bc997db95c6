package driven

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// MediaAnalyzer turns media files into searchable descriptions.
// Analysis is slow and memory hungry; callers gate it with a permit pool.
type MediaAnalyzer interface {
	// Analyze describes the media content.
	Analyze(ctx context.Context, input domain.MediaInput) (domain.MediaAnalysis, error)
}
