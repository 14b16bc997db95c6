package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

type fakeLLM struct {
	calls int
}

func (f *fakeLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	f.calls++
	return "ok", nil
}

func (f *fakeLLM) ChatStream(context.Context, []driven.ChatMessage, driven.ChatOptions) (driven.TokenStream, error) {
	f.calls++
	return nil, nil
}

func (f *fakeLLM) ChatStructured(context.Context, []driven.ChatMessage, *driven.Schema, any, driven.ChatOptions) error {
	f.calls++
	return nil
}

func (f *fakeLLM) ModelName() string          { return "fake" }
func (f *fakeLLM) Ping(context.Context) error { return nil }
func (f *fakeLLM) Close() error               { return nil }

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{1}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	return make([][]float32, len(texts)), nil
}

func (f *fakeEmbedder) Dimensions() int            { return 1 }
func (f *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (f *fakeEmbedder) Ping(context.Context) error { return nil }
func (f *fakeEmbedder) Close() error               { return nil }

func TestNewLimiter_Disabled(t *testing.T) {
	assert.Nil(t, NewLimiter(Config{}))
	assert.Nil(t, NewLimiter(Config{RequestsPerSecond: -1}))

	var l *Limiter
	assert.NoError(t, l.Wait(context.Background()), "nil limiter never blocks")
}

func TestWrap_NilLimiterReturnsNext(t *testing.T) {
	llm := &fakeLLM{}
	embedder := &fakeEmbedder{}

	assert.Same(t, llm, WrapLLM(llm, nil, "ollama"))
	assert.Same(t, embedder, WrapEmbedding(embedder, nil, "ollama"))
	assert.Nil(t, WrapLLM(nil, NewLimiter(Config{RequestsPerSecond: 1}), "ollama"))
}

func TestLLMService_Throttles(t *testing.T) {
	llm := &fakeLLM{}
	wrapped := WrapLLM(llm, NewLimiter(Config{RequestsPerSecond: 20, BurstSize: 1}), "openai")

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := wrapped.Chat(context.Background(), nil, driven.ChatOptions{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, llm.calls)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "two waits of 50ms each")
	assert.Equal(t, "fake", wrapped.ModelName())
}

func TestLLMService_CancelledWait(t *testing.T) {
	llm := &fakeLLM{}
	limiter := NewLimiter(Config{RequestsPerSecond: 0.01, BurstSize: 1})
	wrapped := WrapLLM(llm, limiter, "openai")

	require.NoError(t, wrapped.ChatStructured(context.Background(), nil, nil, nil, driven.ChatOptions{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := wrapped.ChatStream(ctx, nil, driven.ChatOptions{})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, 1, llm.calls, "the throttled call never reached the provider")
}

func TestEmbeddingService_Throttles(t *testing.T) {
	embedder := &fakeEmbedder{}
	wrapped := WrapEmbedding(embedder, NewLimiter(Config{RequestsPerSecond: 100}), "openai")

	_, err := wrapped.Embed(context.Background(), "a")
	require.NoError(t, err)
	out, err := wrapped.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	assert.Equal(t, 2, embedder.calls)
	assert.Equal(t, 1, wrapped.Dimensions())
	assert.Equal(t, "fake-embed", wrapped.ModelName())
}
