package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerStreamer = (*AnswerService)(nil)

// AnswerService streams answers grounded in retrieved evidence.
type AnswerService struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	timeout time.Duration
}

// NewAnswerService creates a new answer streamer. promptStore may be nil.
func NewAnswerService(llm driven.LLMService, promptStore driven.PromptStore) *AnswerService {
	return &AnswerService{
		llm:     llm,
		prompts: promptStore,
		timeout: domain.DefaultAppSettings().Chat.AnswerTimeout,
	}
}

// SetTimeout bounds the whole generation.
func (s *AnswerService) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Answer streams answer fragments for query over evidence.
// The channel closes after the last fragment, after a fallback fragment
// on provider failure, or as soon as ctx is cancelled.
func (s *AnswerService) Answer(ctx context.Context, query string, evidence []domain.EvidenceSnippet) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		ctx, span := observability.StartSpan(ctx, "answer",
			attribute.Int("answer.evidence", len(evidence)))
		defer span.End()

		err := s.stream(ctx, query, evidence, out)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			logger.Debug("Answer stream cancelled: %v", ctx.Err())
		default:
			observability.RecordError(span, err)
			logger.Error("answer generation failed: %v", err)
			select {
			case out <- domain.AnswerFallbackToken:
			case <-ctx.Done():
			}
		}
	}()

	return out
}

func (s *AnswerService) stream(
	ctx context.Context, query string, evidence []domain.EvidenceSnippet, out chan<- string,
) error {
	if s.llm == nil {
		return domain.ErrLLMUnavailable
	}

	genCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	messages := []driven.ChatMessage{
		{Role: "system", Content: prompts.Load(s.prompts, driven.PromptAnswerSystem)},
		{Role: "user", Content: fmt.Sprintf(prompts.Load(s.prompts, driven.PromptAnswerUser),
			domain.JoinEvidence(evidence), query)},
	}

	start := time.Now()
	stream, err := s.llm.ChatStream(genCtx, messages, driven.ChatOptions{})
	if err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Close()

	first := true
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		if first {
			logger.Elapsed("Time to first token", start)
			first = false
		}
		if token == "" {
			continue
		}
		if ctx.Err() != nil {
			return domain.ErrCancelledStream
		}
		select {
		case out <- token:
		case <-ctx.Done():
			return domain.ErrCancelledStream
		}
	}
}
