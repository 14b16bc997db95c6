package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure AnalysisService implements the interface.
var _ driving.AnalysisService = (*AnalysisService)(nil)

// retryBackoff is the wait before the first retry; it roughly doubles per attempt.
const retryBackoff = 2 * time.Second

// AnalysisService captions media through a bounded permit pool.
type AnalysisService struct {
	analyzer   driven.MediaAnalyzer
	permits    *PermitPool
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(analyzer driven.MediaAnalyzer, settings domain.AnalysisSettings) *AnalysisService {
	return &AnalysisService{
		analyzer:   analyzer,
		permits:    NewPermitPool(settings.MaxConcurrent),
		timeout:    settings.Timeout,
		maxRetries: max(settings.MaxRetries, 0),
		backoff:    retryBackoff,
	}
}

// Describe returns a caption for input. The permit is held for every
// attempt, so retries never let another analysis jump the queue.
// Any failure yields domain.FallbackCaption.
func (s *AnalysisService) Describe(ctx context.Context, input domain.MediaInput) domain.MediaAnalysis {
	ctx, span := observability.StartSpan(ctx, "analysis",
		attribute.String("analysis.media_type", input.MediaType.String()),
		attribute.Int("analysis.bytes", len(input.Data)))
	defer span.End()

	analysis, err := s.describe(ctx, input)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error("analysis of %q failed: %v", input.Filename, err)
		return domain.MediaAnalysis{Description: domain.FallbackCaption, Tags: []string{}}
	}
	return analysis
}

func (s *AnalysisService) describe(ctx context.Context, input domain.MediaInput) (domain.MediaAnalysis, error) {
	if s.analyzer == nil {
		return domain.MediaAnalysis{}, domain.ErrLLMUnavailable
	}
	if input.MediaType != domain.MediaTypeImage {
		return domain.MediaAnalysis{}, fmt.Errorf("%w: cannot analyse %s", domain.ErrUnsupportedType, input.MediaType)
	}
	if len(input.Data) == 0 {
		return domain.MediaAnalysis{}, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}

	waited := time.Now()
	release, err := s.permits.Acquire(ctx)
	if err != nil {
		return domain.MediaAnalysis{}, err
	}
	defer release()
	logger.Elapsed("Waited for analysis permit", waited)

	attempt := 0
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     s.backoff,
		RandomizationFactor: 0.2,
		Multiplier:          2,
		MaxInterval:         30 * time.Second,
	}
	analysis, err := backoff.Retry(ctx, func() (domain.MediaAnalysis, error) {
		attempt++
		analysis, err := callWithTimeout(ctx, s.timeout, func(ctx context.Context) (domain.MediaAnalysis, error) {
			return s.analyzer.Analyze(ctx, input)
		})
		if errors.Is(err, domain.ErrUnsupportedType) {
			return analysis, backoff.Permanent(err)
		}
		return analysis, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("Analysis attempt %d failed, retrying in %s: %v", attempt, wait.Round(time.Millisecond), err)
		}),
	)
	if err != nil {
		return domain.MediaAnalysis{}, fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	analysis.Tags = domain.NormaliseTags(analysis.Tags)
	return analysis, nil
}
