package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts listed in vectors get that vector; everything else gets fallback.
type mockEmbeddingService struct {
	vectors  map[string][]float32
	fallback []float32
	embedErr error
	delay    time.Duration
	calls    atomic.Int32
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return 3
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu sync.Mutex

	// Chat
	chatReply string
	chatErr   error

	// ChatStream
	tokens    []string
	streamErr error // returned after tokens are exhausted
	startErr  error

	// ChatStructured
	judge           func(messages []driven.ChatMessage) (string, error)
	structuredDelay time.Duration

	structuredCalls atomic.Int32
	lastMessages    []driven.ChatMessage
	lastOpts        driven.ChatOptions
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.record(messages, opts)
	return m.chatReply, m.chatErr
}

func (m *mockLLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (driven.TokenStream, error) {
	m.record(messages, opts)
	if m.startErr != nil {
		return nil, m.startErr
	}
	return &sliceStream{ctx: ctx, tokens: m.tokens, err: m.streamErr}, nil
}

func (m *mockLLMService) ChatStructured(
	ctx context.Context, messages []driven.ChatMessage, _ *driven.Schema, out any, opts driven.ChatOptions,
) error {
	m.structuredCalls.Add(1)
	m.record(messages, opts)
	if m.structuredDelay > 0 {
		select {
		case <-time.After(m.structuredDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.judge == nil {
		return errors.New("no judge configured")
	}
	reply, err := m.judge(messages)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(reply), out)
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

func (m *mockLLMService) record(messages []driven.ChatMessage, opts driven.ChatOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMessages = messages
	m.lastOpts = opts
}

func (m *mockLLMService) options() driven.ChatOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// sliceStream replays tokens, honouring cancellation between them.
type sliceStream struct {
	ctx    context.Context
	tokens []string
	err    error
	pos    int
}

func (s *sliceStream) Next() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos < len(s.tokens) {
		t := s.tokens[s.pos]
		s.pos++
		return t, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *sliceStream) Close() error {
	return nil
}

// mockMediaAnalyzer implements driven.MediaAnalyzer for testing.
type mockMediaAnalyzer struct {
	mu       sync.Mutex
	failures int // number of calls that fail before success
	err      error
	delay    time.Duration
	result   domain.MediaAnalysis

	calls    int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (m *mockMediaAnalyzer) Analyze(ctx context.Context, _ domain.MediaInput) (domain.MediaAnalysis, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return domain.MediaAnalysis{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		return domain.MediaAnalysis{}, errors.New("model crashed")
	}
	if m.err != nil {
		return domain.MediaAnalysis{}, m.err
	}
	return m.result, nil
}

func (m *mockMediaAnalyzer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// mockVerifier implements driving.Verifier and counts calls.
type mockVerifier struct {
	verdict domain.Verdict
	calls   atomic.Int32
}

func (m *mockVerifier) Verify(_ context.Context, _, _ string, _ []domain.EvidenceSnippet) domain.Verdict {
	m.calls.Add(1)
	return m.verdict
}

// Interface checks for the mocks.
var (
	_ driven.EmbeddingService = (*mockEmbeddingService)(nil)
	_ driven.LLMService       = (*mockLLMService)(nil)
	_ driven.MediaAnalyzer    = (*mockMediaAnalyzer)(nil)
	_ driven.PromptStore      = (*mockPromptStore)(nil)
)

// collectEvents drains a chat stream.
func collectEvents(ch <-chan domain.ChatEvent) []domain.ChatEvent {
	var events []domain.ChatEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func int64Ptr(v int64) *int64 {
	return &v
}

// mockNormalisers is a driven.NormaliserRegistry returning a fixed result.
type mockNormalisers struct {
	result *domain.NormalisedText
	err    error
	got    *domain.SourceFile
}

func (m *mockNormalisers) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedText, error) {
	m.got = file
	return m.result, m.err
}

func (m *mockNormalisers) Register(driven.Normaliser) {}

func (m *mockNormalisers) SupportedMIMETypes() []string { return nil }
