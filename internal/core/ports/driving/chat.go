package driving

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// AnswerStreamer generates an answer grounded in evidence.
type AnswerStreamer interface {
	// Answer streams answer fragments. The channel is closed when the answer
	// is complete or ctx is cancelled. Generation failures surface as a
	// fallback fragment, never as a broken stream.
	Answer(ctx context.Context, query string, evidence []domain.EvidenceSnippet) <-chan string
}

// Verifier checks an answer against the evidence it was generated from.
type Verifier interface {
	// Verify never fails: errors and timeouts yield domain.FailSafeVerdict.
	Verify(ctx context.Context, question, answer string, evidence []domain.EvidenceSnippet) domain.Verdict
}

// ChatService runs the full retrieve, answer and verify protocol.
type ChatService interface {
	// Ask returns the event stream for a question. Retrieval errors are
	// returned before any event is produced. The stream ends with exactly
	// one verification event unless ctx is cancelled first.
	Ask(ctx context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error)
}
