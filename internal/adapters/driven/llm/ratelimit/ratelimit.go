// Package ratelimit throttles calls to model providers with a token bucket.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// Ensure the decorators implement the interfaces.
var (
	_ driven.LLMService       = (*LLMService)(nil)
	_ driven.EmbeddingService = (*EmbeddingService)(nil)
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate limit. Zero or less disables limiting.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size (default: ceil(RequestsPerSecond), at least 1).
	BurstSize int
}

// Limiter is a token bucket shared by the decorators of one provider.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a limiter, or nil when cfg disables limiting.
func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = max(int(math.Ceil(cfg.RequestsPerSecond)), 1)
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)}
}

// Wait blocks until a request can be made without exceeding the rate limit.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// LLMService throttles an LLMService. Only request starts are counted;
// a stream in progress is never paused.
type LLMService struct {
	next     driven.LLMService
	limiter  *Limiter
	provider string
}

// WrapLLM decorates next with limiter. A nil limiter returns next unchanged.
func WrapLLM(next driven.LLMService, limiter *Limiter, provider string) driven.LLMService {
	if limiter == nil || next == nil {
		return next
	}
	return &LLMService{next: next, limiter: limiter, provider: provider}
}

func (s *LLMService) wait(ctx context.Context, op string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.NewProviderError(s.provider, op, err)
	}
	return nil
}

// Chat waits for a token, then delegates.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := s.wait(ctx, "chat"); err != nil {
		return "", err
	}
	return s.next.Chat(ctx, messages, opts)
}

// ChatStream waits for a token, then delegates.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (driven.TokenStream, error) {
	if err := s.wait(ctx, "stream"); err != nil {
		return nil, err
	}
	return s.next.ChatStream(ctx, messages, opts)
}

// ChatStructured waits for a token, then delegates.
func (s *LLMService) ChatStructured(
	ctx context.Context, messages []driven.ChatMessage, schema *driven.Schema, out any, opts driven.ChatOptions,
) error {
	if err := s.wait(ctx, "structured"); err != nil {
		return err
	}
	return s.next.ChatStructured(ctx, messages, schema, out, opts)
}

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string { return s.next.ModelName() }

// Ping is not rate limited.
func (s *LLMService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close closes the wrapped service.
func (s *LLMService) Close() error { return s.next.Close() }

// EmbeddingService throttles an EmbeddingService. A batch counts as one request.
type EmbeddingService struct {
	next     driven.EmbeddingService
	limiter  *Limiter
	provider string
}

// WrapEmbedding decorates next with limiter. A nil limiter returns next unchanged.
func WrapEmbedding(next driven.EmbeddingService, limiter *Limiter, provider string) driven.EmbeddingService {
	if limiter == nil || next == nil {
		return next
	}
	return &EmbeddingService{next: next, limiter: limiter, provider: provider}
}

// Embed waits for a token, then delegates.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, domain.NewProviderError(s.provider, "embed", err)
	}
	return s.next.Embed(ctx, text)
}

// EmbedBatch waits for a token, then delegates.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, domain.NewProviderError(s.provider, "embed", err)
	}
	return s.next.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped vector size.
func (s *EmbeddingService) Dimensions() int { return s.next.Dimensions() }

// ModelName returns the wrapped model name.
func (s *EmbeddingService) ModelName() string { return s.next.ModelName() }

// Ping is not rate limited.
func (s *EmbeddingService) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error { return s.next.Close() }
