// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

const providerName = "ollama"

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "gemma3:4b"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: gemma3:4b).
	Model string

	// Timeout bounds non-streaming requests (default: 120s).
	// Streams are bounded by the caller's context only.
	Timeout time.Duration
}

// LLMService provides LLM operations using Ollama.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  *options        `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// chatMessage is the Ollama chat message format.
// Images are sent base64 encoded, which is how encoding/json writes []byte.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  [][]byte `json:"images,omitempty"`
}

// chatResponse is one /api/chat reply, or one line of a streamed reply.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client:  observability.HTTPClient(0),
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Chat conducts a multi-turn conversation and returns the full reply.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.chat(ctx, s.request(messages, opts, false), "chat")
	if err != nil {
		return "", err
	}
	return reply.Message.Content, nil
}

// ChatStream starts a streamed reply. Ollama streams newline-delimited JSON objects.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (driven.TokenStream, error) {
	resp, err := s.post(ctx, s.request(messages, opts, true), "stream")
	if err != nil {
		return nil, err
	}
	return &tokenStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

// ChatStructured constrains the reply with Ollama's format parameter and
// validates it against the schema. Sampling is deterministic.
func (s *LLMService) ChatStructured(
	ctx context.Context, messages []driven.ChatMessage, schema *driven.Schema, out any, opts driven.ChatOptions,
) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	format, err := json.Marshal(schema.Schema)
	if err != nil {
		return domain.NewProviderError(providerName, "structured", fmt.Errorf("marshal schema: %w", err))
	}

	opts.Temperature = 0
	req := s.request(messages, opts, false)
	req.Format = format
	zero := 0.0
	if req.Options == nil {
		req.Options = &options{}
	}
	req.Options.Temperature = &zero

	reply, err := s.chat(ctx, req, "structured")
	if err != nil {
		return err
	}
	if err := schema.Decode([]byte(reply.Message.Content), out); err != nil {
		return domain.NewProviderError(providerName, "structured", err)
	}
	return nil
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) chatRequest {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
			Images:  msg.Images,
		}
	}

	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := chatRequest{
		Model:    model,
		Messages: chatMessages,
		Stream:   stream,
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		req.Options = &options{NumPredict: opts.MaxTokens}
		if opts.Temperature > 0 {
			req.Options.Temperature = &opts.Temperature
		}
	}
	return req
}

func (s *LLMService) chat(ctx context.Context, body chatRequest, op string) (*chatResponse, error) {
	ctx, span := observability.StartProviderSpan(ctx, providerName, body.Model, op)
	defer span.End()

	resp, err := s.post(ctx, body, op)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	var reply chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		err = domain.NewProviderError(providerName, op, fmt.Errorf("decode response: %w", err))
		observability.RecordError(span, err)
		return nil, err
	}
	if reply.Error != "" {
		err = domain.NewProviderError(providerName, op, errors.New(reply.Error))
		observability.RecordError(span, err)
		return nil, err
	}
	return &reply, nil
}

// post sends a chat request. On success the caller owns the response body.
func (s *LLMService) post(ctx context.Context, body chatRequest, op string) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var reply chatResponse
		if json.Unmarshal(raw, &reply) == nil && reply.Error != "" {
			return nil, domain.NewProviderError(providerName, op, fmt.Errorf("status %d: %s", resp.StatusCode, reply.Error))
		}
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}
	return resp, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return domain.NewProviderError(providerName, "ping", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.NewProviderError(providerName, "ping", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.NewProviderError(providerName, "ping", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// tokenStream reads a newline-delimited JSON chat stream.
type tokenStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	done bool
}

// Next returns the next non-empty fragment, or io.EOF after the final chunk.
func (t *tokenStream) Next() (string, error) {
	for !t.done {
		var chunk chatResponse
		if err := t.dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", domain.NewProviderError(providerName, "stream", err)
		}
		if chunk.Error != "" {
			return "", domain.NewProviderError(providerName, "stream", errors.New(chunk.Error))
		}
		t.done = chunk.Done
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	return "", io.EOF
}

// Close aborts the stream.
func (t *tokenStream) Close() error {
	t.done = true
	return t.body.Close()
}
