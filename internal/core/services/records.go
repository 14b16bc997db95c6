package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// Ensure RecordService implements the interface.
var _ driving.RecordService = (*RecordService)(nil)

// RecordService stores records and keeps their vectors in step.
//
// Writes are split: the record is committed first and embedded second.
// An embedding failure leaves a stored record without a vector; it is
// logged and never undoes the write.
type RecordService struct {
	recordStore      driven.RecordStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	embedTimeout     time.Duration
	now              func() time.Time
}

// NewRecordService creates a new record service.
// The vectorIndex and embeddingService parameters are optional (can be nil).
func NewRecordService(
	recordStore driven.RecordStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
) *RecordService {
	return &RecordService{
		recordStore:      recordStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		embedTimeout:     domain.DefaultAppSettings().Embedding.Timeout,
		now:              time.Now,
	}
}

// SetEmbedTimeout bounds each embedding call.
func (s *RecordService) SetEmbedTimeout(d time.Duration) {
	s.embedTimeout = d
}

// Create stores a new record and embeds it unless it is still processing.
func (s *RecordService) Create(ctx context.Context, record *domain.Record) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", domain.ErrInvalidInput)
	}
	if record.ID != 0 {
		return fmt.Errorf("%w: new record already has id %d", domain.ErrInvalidInput, record.ID)
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	now := s.now().UTC()
	record.Tags = domain.NormaliseTags(record.Tags)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Active = true

	if err := s.recordStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	logger.Debug("Created record %d (%s)", record.ID, record.MediaType)

	if !record.Processing {
		s.embed(ctx, record)
	}
	return nil
}

// Update stores changes and re-embeds when embedded fields changed.
func (s *RecordService) Update(ctx context.Context, record *domain.Record) error {
	if record == nil || record.ID == 0 {
		return fmt.Errorf("%w: record id required", domain.ErrInvalidInput)
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	existing, err := s.recordStore.Get(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("load record %d: %w", record.ID, err)
	}

	record.Tags = domain.NormaliseTags(record.Tags)
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.now().UTC()

	if err := s.recordStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	if !record.Processing && embeddedFieldsChanged(existing, record) {
		s.embed(ctx, record)
	}
	return nil
}

// MarkProcessed clears the processing flag and embeds the final content.
func (s *RecordService) MarkProcessed(ctx context.Context, id int64) error {
	record, err := s.recordStore.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load record %d: %w", id, err)
	}
	if !record.Processing {
		return nil
	}

	record.Processing = false
	record.UpdatedAt = s.now().UTC()
	if err := s.recordStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	logger.Debug("Record %d processed", id)

	s.embed(ctx, record)
	return nil
}

// Get returns the record with its place in the hierarchy.
func (s *RecordService) Get(ctx context.Context, id int64) (domain.Node, error) {
	record, err := s.recordStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	childIDs, err := s.recordStore.ChildIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return domain.Classify(*record, childIDs)
}

// Delete removes a record, its children and their vectors.
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	if _, err := s.recordStore.Get(ctx, id); err != nil {
		return err
	}
	childIDs, err := s.recordStore.ChildIDs(ctx, id)
	if err != nil {
		return fmt.Errorf("list children: %w", err)
	}

	ids := append([]int64{id}, childIDs...)
	if s.vectorIndex != nil {
		if err := s.vectorIndex.Delete(ctx, ids...); err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
	}
	// Children first so the store never sees an orphan.
	if len(childIDs) > 0 {
		if err := s.recordStore.Delete(ctx, childIDs...); err != nil {
			return fmt.Errorf("delete children: %w", err)
		}
	}
	if err := s.recordStore.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	logger.Info("Deleted record %d and %d chunks", id, len(childIDs))
	return nil
}

// Timeline lists visible records, newest first.
func (s *RecordService) Timeline(ctx context.Context, offset, limit int) ([]domain.Record, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", domain.ErrInvalidInput)
	}
	return s.recordStore.Scan(ctx, driven.ScanFilter{
		Options:       domain.SearchOptions{Limit: limit},
		ExcludeHidden: true,
		Offset:        offset,
	})
}

// embed stores the record's vector. Failures are logged, not returned.
func (s *RecordService) embed(ctx context.Context, record *domain.Record) {
	if s.embeddingService == nil || s.vectorIndex == nil {
		logger.Debug("Embedding disabled, record %d stored without vector", record.ID)
		return
	}

	start := time.Now()
	vec, err := callWithTimeout(ctx, s.embedTimeout, func(ctx context.Context) ([]float32, error) {
		return s.embeddingService.Embed(ctx, domain.EmbeddingText(record))
	})
	if err == nil {
		err = s.vectorIndex.Upsert(ctx, record.ID, vec)
	}
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			logger.Error("embedding record %d failed at %s/%s: %v", record.ID, perr.Provider, perr.Op, perr.Err)
		} else {
			logger.Error("embedding record %d failed: %v", record.ID, err)
		}
		return
	}
	logger.Elapsed(fmt.Sprintf("Embedded record %d", record.ID), start)
}

func validateRecord(r *domain.Record) error {
	if !r.MediaType.IsValid() {
		return fmt.Errorf("%w: media type %q", domain.ErrInvalidInput, r.MediaType)
	}
	if r.ParentID != nil && *r.ParentID == r.ID && r.ID != 0 {
		return fmt.Errorf("%w: record cannot be its own parent", domain.ErrHierarchyDepth)
	}
	return nil
}

func embeddedFieldsChanged(before, after *domain.Record) bool {
	if before.Processing {
		return true
	}
	if before.Content != after.Content || before.MediaType != after.MediaType {
		return true
	}
	if !slices.Equal(before.Tags, after.Tags) {
		return true
	}
	var was, is string
	if before.Summary != nil {
		was = *before.Summary
	}
	if after.Summary != nil {
		is = *after.Summary
	}
	return was != is
}
