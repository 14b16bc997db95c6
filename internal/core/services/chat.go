package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatService answers questions over the vault and verifies the answers.
type ChatService struct {
	search   driving.SearchService
	context  driving.ContextRetriever
	answerer driving.AnswerStreamer
	verifier driving.Verifier
}

// NewChatService creates a new chat service.
func NewChatService(
	search driving.SearchService,
	contextRetriever driving.ContextRetriever,
	answerer driving.AnswerStreamer,
	verifier driving.Verifier,
) *ChatService {
	return &ChatService{
		search:   search,
		context:  contextRetriever,
		answerer: answerer,
		verifier: verifier,
	}
}

// Ask retrieves evidence for req, then streams the answer and its verdict.
func (s *ChatService) Ask(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	requestID := uuid.NewString()[:8]
	logger.Info("[%s] Chat: %q", requestID, req.Query)

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	evidence, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("[%s] Evidence snippets: %d", requestID, len(evidence))

	out := make(chan domain.ChatEvent)
	go func() {
		defer close(out)

		if len(evidence) == 0 {
			if !send(ctx, out, domain.ChatEvent{
				Type:    domain.ChatEventNoInformation,
				Message: req.NoInformation(),
			}) {
				return
			}
			verdict := domain.NoEvidenceVerdict()
			send(ctx, out, domain.ChatEvent{Type: domain.ChatEventVerification, Verdict: &verdict})
			return
		}

		var answer strings.Builder
		tokens := s.answerer.Answer(ctx, req.Query, evidence)
		for token := range tokens {
			answer.WriteString(token)
			if !send(ctx, out, domain.ChatEvent{Type: domain.ChatEventToken, Token: token}) {
				// The answerer closes tokens once it sees the cancellation.
				for range tokens {
				}
				return
			}
		}
		if ctx.Err() != nil {
			logger.Debug("[%s] Chat cancelled before verification", requestID)
			return
		}

		verdict := s.verifier.Verify(ctx, req.Query, answer.String(), evidence)
		send(ctx, out, domain.ChatEvent{Type: domain.ChatEventVerification, Verdict: &verdict})
		logger.Info("[%s] Chat complete, valid=%t", requestID, verdict.Valid)
	}()

	return out, nil
}

func (s *ChatService) retrieve(ctx context.Context, req domain.ChatRequest) ([]domain.EvidenceSnippet, error) {
	if req.DocumentID != nil {
		return s.context.GetContext(ctx, *req.DocumentID, req.Query, req.TopK)
	}

	topK := req.TopK
	if topK <= 0 || topK > domain.MaxContextSnippets {
		topK = domain.MaxContextSnippets
	}
	results, err := s.search.Search(ctx, req.Query, domain.SearchOptions{Limit: topK})
	if err != nil {
		return nil, err
	}

	evidence := make([]domain.EvidenceSnippet, 0, len(results))
	for _, r := range results {
		text := r.Record.Content
		if r.Record.Summary != nil && *r.Record.Summary != "" {
			text = *r.Record.Summary
		}
		evidence = append(evidence, domain.EvidenceSnippet{
			SourceRecordID: r.Record.ID,
			Text:           text,
			Score:          1 - r.Distance,
		})
	}
	return evidence, nil
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, out chan<- domain.ChatEvent, ev domain.ChatEvent) bool {
	// Nothing is delivered once cancellation is visible.
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
