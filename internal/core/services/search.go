package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// candidateFactor over-fetches neighbours so that relational filtering
// still leaves enough rows to fill the requested limit.
const candidateFactor = 4

// SearchService combines vector similarity with relational predicates.
type SearchService struct {
	recordStore      driven.RecordStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	embedTimeout     time.Duration
}

// NewSearchService creates a new search service.
// The vectorIndex and embeddingService parameters are optional (can be nil);
// without them only empty-query scans succeed.
func NewSearchService(
	recordStore driven.RecordStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
) *SearchService {
	return &SearchService{
		recordStore:      recordStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		embedTimeout:     domain.DefaultAppSettings().Embedding.Timeout,
	}
}

// SetEmbedTimeout bounds each query embedding call.
func (s *SearchService) SetEmbedTimeout(d time.Duration) {
	s.embedTimeout = d
}

// Search performs hybrid search across all records.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	ctx, span := observability.StartSpan(ctx, "search",
		attribute.Int("search.limit", opts.EffectiveLimit()),
		attribute.String("search.media_type", string(opts.MediaType)))
	defer span.End()

	query = strings.TrimSpace(query)
	var results []domain.SearchResult
	var err error
	if query == "" {
		results, err = s.scan(ctx, opts)
	} else {
		results, err = s.semantic(ctx, query, opts)
	}
	if err != nil {
		observability.RecordError(span, err)
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	logger.Info("Final results: %d", len(results))
	return results, nil
}

// scan lists records by recency when there is nothing to rank against.
func (s *SearchService) scan(ctx context.Context, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Debug("Empty query, executing relational scan")

	records, err := s.recordStore.Scan(ctx, driven.ScanFilter{Options: opts, ExcludeHidden: true})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(records))
	for _, r := range records {
		results = append(results, domain.SearchResult{Record: r})
	}
	return results, nil
}

// semantic ranks records by vector distance, filters them relationally,
// then prefers parent documents over their chunks.
func (s *SearchService) semantic(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	start := time.Now()
	vec, err := callWithTimeout(ctx, s.embedTimeout, func(ctx context.Context) ([]float32, error) {
		return s.embeddingService.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	logger.Elapsed("Query embedding", start)

	limit := opts.EffectiveLimit()
	hits, err := s.vectorIndex.NearestNeighbors(ctx, vec, limit*candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbours: %w", err)
	}
	logger.Debug("Vector candidates: %d", len(hits))
	if len(hits) == 0 {
		return []domain.SearchResult{}, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.RecordID
	}
	records, err := s.recordStore.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	byID := make(map[int64]domain.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	// Rows surviving the relational predicates, still in distance order.
	type ranked struct {
		record   domain.Record
		distance float64
	}
	var rows []ranked
	for _, h := range hits {
		r, ok := byID[h.RecordID]
		if !ok || !opts.Matches(&r) {
			continue
		}
		rows = append(rows, ranked{record: r, distance: h.Distance})
	}
	logger.Debug("After relational filter: %d", len(rows))

	var parents map[int64]domain.Record
	if opts.MediaType == "" {
		var parentIDs []int64
		wanted := make(map[int64]bool)
		for _, row := range rows {
			if pid := row.record.ParentID; pid != nil && !wanted[*pid] {
				wanted[*pid] = true
				parentIDs = append(parentIDs, *pid)
			}
		}
		if parents, err = s.loadParents(ctx, parentIDs); err != nil {
			return nil, err
		}
	}

	results := make([]domain.SearchResult, 0, min(limit, len(rows)))
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		shown := row.record
		if opts.MediaType == "" && shown.ParentID != nil {
			if p, ok := parents[*shown.ParentID]; ok {
				// An archived document stays hidden behind its chunks too.
				if !opts.IncludeInactive && !p.Active {
					continue
				}
				shown = p
			}
		}
		if seen[shown.ID] {
			continue
		}
		seen[shown.ID] = true
		results = append(results, domain.SearchResult{Record: shown, Distance: row.distance, Ranked: true})
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

// loadParents fetches every parent needed for substitution in one call.
func (s *SearchService) loadParents(ctx context.Context, parentIDs []int64) (map[int64]domain.Record, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	records, err := s.recordStore.GetMany(ctx, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("load parents: %w", err)
	}
	parents := make(map[int64]domain.Record, len(records))
	for _, p := range records {
		parents[p.ID] = p
	}
	logger.Debug("Parent substitution: %d of %d parents found", len(parents), len(parentIDs))
	return parents, nil
}
