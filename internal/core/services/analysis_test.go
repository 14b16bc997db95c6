package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

var photo = domain.MediaInput{MediaType: domain.MediaTypeImage, Data: []byte{0x89, 'P', 'N', 'G'}, Filename: "photo.png"}

func analysisSettings(permits, retries int) domain.AnalysisSettings {
	return domain.AnalysisSettings{MaxConcurrent: permits, Timeout: time.Second, MaxRetries: retries}
}

func TestAnalysisService_Describe(t *testing.T) {
	analyzer := &mockMediaAnalyzer{result: domain.MediaAnalysis{
		Description: "The Eiffel tower at dusk.",
		Tags:        []string{"tower", "paris", "tower"},
	}}
	service := NewAnalysisService(analyzer, analysisSettings(1, 0))

	got := service.Describe(context.Background(), photo)

	assert.Equal(t, "The Eiffel tower at dusk.", got.Description)
	assert.Equal(t, []string{"paris", "tower"}, got.Tags)
}

func TestAnalysisService_RetriesThenSucceeds(t *testing.T) {
	analyzer := &mockMediaAnalyzer{failures: 2, result: domain.MediaAnalysis{Description: "ok"}}
	service := NewAnalysisService(analyzer, analysisSettings(1, 2))
	service.backoff = time.Millisecond

	got := service.Describe(context.Background(), photo)

	assert.Equal(t, "ok", got.Description)
	assert.Equal(t, 3, analyzer.callCount())
}

func TestAnalysisService_FallbackAfterRetries(t *testing.T) {
	analyzer := &mockMediaAnalyzer{failures: 10}
	service := NewAnalysisService(analyzer, analysisSettings(1, 2))
	service.backoff = time.Millisecond

	got := service.Describe(context.Background(), photo)

	assert.Equal(t, domain.FallbackCaption, got.Description)
	assert.Empty(t, got.Tags)
	assert.Equal(t, 3, analyzer.callCount())
}

func TestAnalysisService_UnsupportedType(t *testing.T) {
	analyzer := &mockMediaAnalyzer{}
	service := NewAnalysisService(analyzer, analysisSettings(1, 2))

	got := service.Describe(context.Background(), domain.MediaInput{MediaType: domain.MediaTypeVoice, Data: []byte("x")})

	assert.Equal(t, domain.FallbackCaption, got.Description)
	assert.Equal(t, 0, analyzer.callCount())
}

func TestAnalysisService_PermitPoolBoundsConcurrency(t *testing.T) {
	analyzer := &mockMediaAnalyzer{delay: 30 * time.Millisecond, result: domain.MediaAnalysis{Description: "ok"}}
	service := NewAnalysisService(analyzer, analysisSettings(1, 0))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			service.Describe(context.Background(), photo)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), analyzer.peak.Load())
	assert.Equal(t, 4, analyzer.callCount())
}

func TestAnalysisService_PermitHeldAcrossRetries(t *testing.T) {
	// The first request fails once and retries; the second must not run in between.
	analyzer := &mockMediaAnalyzer{failures: 1, delay: 10 * time.Millisecond, result: domain.MediaAnalysis{Description: "ok"}}
	service := NewAnalysisService(analyzer, analysisSettings(1, 1))
	service.backoff = 20 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", service.Describe(context.Background(), photo).Description)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), analyzer.peak.Load())
	assert.Equal(t, 3, analyzer.callCount())
}

func TestAnalysisService_TimeoutPerAttempt(t *testing.T) {
	analyzer := &mockMediaAnalyzer{delay: time.Second}
	service := NewAnalysisService(analyzer, domain.AnalysisSettings{MaxConcurrent: 1, Timeout: 20 * time.Millisecond})

	start := time.Now()
	got := service.Describe(context.Background(), photo)

	assert.Equal(t, domain.FallbackCaption, got.Description)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAnalysisService_NoAnalyzer(t *testing.T) {
	service := NewAnalysisService(nil, analysisSettings(1, 0))

	got := service.Describe(context.Background(), photo)

	assert.Equal(t, domain.FallbackCaption, got.Description)
}
