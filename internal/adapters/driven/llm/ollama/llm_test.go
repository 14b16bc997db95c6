package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

type verdict struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

func newService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLLMService(LLMConfig{BaseURL: srv.URL})
}

func decodeRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

var question = []driven.ChatMessage{
	{Role: "system", Content: "Answer from the context only."},
	{Role: "user", Content: "What is the capital of France?"},
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, DefaultLLMTimeout, svc.timeout)
	assert.Zero(t, svc.client.Timeout, "streams are bounded by context")
}

func TestLLMService_Chat(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body := decodeRequest(t, r)
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, DefaultLLMModel, body["model"])
		assert.Len(t, body["messages"], 2)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Paris."},"done":true}`))
	})

	reply, err := svc.Chat(context.Background(), question, driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Paris.", reply)
}

func TestLLMService_ChatModelOverrideAndImages(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeRequest(t, r)
		assert.Equal(t, "llava", body["model"])
		msg := body["messages"].([]any)[0].(map[string]any)
		assert.Equal(t, []any{"AQID"}, msg["images"], "images are base64 encoded")
		opts := body["options"].(map[string]any)
		assert.InDelta(t, 0.2, opts["temperature"], 1e-9)
		_, _ = w.Write([]byte(`{"message":{"content":"a cat"},"done":true}`))
	})

	reply, err := svc.Chat(context.Background(),
		[]driven.ChatMessage{{Role: "user", Content: "describe", Images: [][]byte{{1, 2, 3}}}},
		driven.ChatOptions{Model: "llava", Temperature: 0.2})

	require.NoError(t, err)
	assert.Equal(t, "a cat", reply)
}

func TestLLMService_ChatError(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'gemma3:4b' not found"}`))
	})

	_, err := svc.Chat(context.Background(), question, driven.ChatOptions{})

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ollama", perr.Provider)
	assert.Contains(t, err.Error(), "not found")
}

func TestLLMService_ChatStream(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, true, decodeRequest(t, r)["stream"])
		for _, line := range []string{
			`{"message":{"content":"The capital "},"done":false}`,
			`{"message":{"content":""},"done":false}`,
			`{"message":{"content":"is Paris."},"done":false}`,
			`{"message":{"content":""},"done":true}`,
		} {
			_, _ = w.Write([]byte(line + "\n"))
			w.(http.Flusher).Flush()
		}
	})

	stream, err := svc.ChatStream(context.Background(), question, driven.ChatOptions{})
	require.NoError(t, err)
	defer stream.Close()

	var tokens []string
	for {
		tok, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
	assert.Equal(t, []string{"The capital ", "is Paris."}, tokens)
}

func TestLLMService_ChatStreamErrors(t *testing.T) {
	t.Run("error line", func(t *testing.T) {
		svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message":{"content":"Par"},"done":false}` + "\n" + `{"error":"out of memory"}` + "\n"))
		})

		stream, err := svc.ChatStream(context.Background(), question, driven.ChatOptions{})
		require.NoError(t, err)
		defer stream.Close()

		tok, err := stream.Next()
		require.NoError(t, err)
		assert.Equal(t, "Par", tok)

		_, err = stream.Next()
		assert.ErrorIs(t, err, domain.ErrProvider)
		assert.ErrorContains(t, err, "out of memory")
	})

	t.Run("truncated", func(t *testing.T) {
		svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message":{"content":"Par"},"done":false}` + "\n"))
		})

		stream, err := svc.ChatStream(context.Background(), question, driven.ChatOptions{})
		require.NoError(t, err)
		defer stream.Close()

		_, _ = stream.Next()
		_, err = stream.Next()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("rejected", func(t *testing.T) {
		svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := svc.ChatStream(context.Background(), question, driven.ChatOptions{})
		assert.ErrorIs(t, err, domain.ErrProvider)
	})
}

func TestLLMService_ChatStructured(t *testing.T) {
	schema, err := driven.SchemaFor[verdict]("verdict")
	require.NoError(t, err)

	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeRequest(t, r)
		format := body["format"].(map[string]any)
		assert.Equal(t, "object", format["type"])
		assert.Contains(t, format["properties"], "is_valid")
		opts := body["options"].(map[string]any)
		assert.Equal(t, 0.0, opts["temperature"])
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Content: `{"is_valid":true,"reason":"supported"}`},
			Done:    true,
		})
	})

	var got verdict
	err = svc.ChatStructured(context.Background(), question, schema, &got, driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, verdict{IsValid: true, Reason: "supported"}, got)
}

func TestLLMService_ChatStructuredRejectsInvalidReply(t *testing.T) {
	schema, err := driven.SchemaFor[verdict]("verdict")
	require.NoError(t, err)

	for name, content := range map[string]string{
		"not json":      "Yes, it is valid.",
		"missing field": `{"is_valid":true}`,
		"wrong type":    `{"is_valid":"yes","reason":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := newService(t, func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Content: content}, Done: true})
			})

			var got verdict
			err := svc.ChatStructured(context.Background(), question, schema, &got, driven.ChatOptions{})

			assert.ErrorIs(t, err, domain.ErrStructuredOutput)
			assert.ErrorIs(t, err, domain.ErrProvider)
		})
	}
}

func TestLLMService_Ping(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
