package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure ContextService implements the interface.
var _ driving.ContextRetriever = (*ContextService)(nil)

// ContextService ranks the chunks of one document against a query.
// It never consults the global index, so evidence cannot leak in from
// other documents.
type ContextService struct {
	recordStore      driven.RecordStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	embedTimeout     time.Duration
}

// NewContextService creates a new scoped context retriever.
func NewContextService(
	recordStore driven.RecordStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
) *ContextService {
	return &ContextService{
		recordStore:      recordStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		embedTimeout:     domain.DefaultAppSettings().Embedding.Timeout,
	}
}

// SetEmbedTimeout bounds the query embedding call.
func (s *ContextService) SetEmbedTimeout(d time.Duration) {
	s.embedTimeout = d
}

// GetContext returns the topK most similar chunks of parentID.
func (s *ContextService) GetContext(
	ctx context.Context, parentID int64, query string, topK int,
) ([]domain.EvidenceSnippet, error) {
	logger.Section("Document Context")
	logger.Debug("Document: %d, query: %q", parentID, query)

	if topK <= 0 || topK > domain.MaxContextSnippets {
		topK = domain.MaxContextSnippets
	}

	ctx, span := observability.StartSpan(ctx, "context",
		attribute.Int64("context.parent_id", parentID),
		attribute.Int("context.top_k", topK))
	defer span.End()

	snippets, err := s.retrieve(ctx, parentID, query, topK)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("context: %w", err)
	}
	span.SetAttributes(attribute.Int("context.snippets", len(snippets)))
	return snippets, nil
}

func (s *ContextService) retrieve(
	ctx context.Context, parentID int64, query string, topK int,
) ([]domain.EvidenceSnippet, error) {
	childIDs, err := s.recordStore.ChildIDs(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	if len(childIDs) == 0 {
		logger.Debug("Document has no chunks")
		return []domain.EvidenceSnippet{}, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	queryVec, err := callWithTimeout(ctx, s.embedTimeout, func(ctx context.Context) ([]float32, error) {
		return s.embeddingService.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	entries, err := s.vectorIndex.Lookup(ctx, childIDs)
	if err != nil {
		return nil, fmt.Errorf("load chunk vectors: %w", err)
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(len(queryVec)); err != nil {
			logger.Warn("Skipping chunk %d: %v", e.RecordID, err)
			continue
		}
		sim, err := domain.Cosine(queryVec, e.Vector)
		if err != nil {
			logger.Warn("Skipping chunk %d: %v", e.RecordID, err)
			continue
		}
		ranked = append(ranked, scored{id: e.RecordID, score: sim})
	}
	logger.Debug("Chunks: %d, with usable vectors: %d", len(childIDs), len(ranked))

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	if len(ranked) == 0 {
		return []domain.EvidenceSnippet{}, nil
	}

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.id
	}
	records, err := s.recordStore.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	byID := make(map[int64]domain.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	snippets := make([]domain.EvidenceSnippet, 0, len(ranked))
	for _, r := range ranked {
		rec, ok := byID[r.id]
		if !ok || rec.ParentID == nil || *rec.ParentID != parentID {
			continue
		}
		snippets = append(snippets, domain.EvidenceSnippet{
			SourceRecordID: rec.ID,
			Text:           rec.Content,
			Score:          r.score,
		})
	}
	return snippets, nil
}
