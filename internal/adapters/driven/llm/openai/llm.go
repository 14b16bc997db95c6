// Package openai provides an LLM service adapter using OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/neurovault/internal/adapters/driven/llm/sse"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

const providerName = "openai"

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout bounds non-streaming requests (default: 120s).
	Timeout time.Duration
}

// LLMService provides LLM operations using OpenAI API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatCompletionMsg `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	Temperature    *float64            `json:"temperature,omitempty"`
	Stream         bool                `json:"stream,omitempty"`
	ResponseFormat *responseFormat     `json:"response_format,omitempty"`
}

// chatCompletionMsg is the OpenAI chat message format. Content is a
// string, or a list of parts when images are attached.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
// Streamed chunks carry Delta instead of Message.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
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
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.complete(ctx, s.request(messages, opts), "chat")
}

// ChatStream starts a streamed completion delivered as server-sent events.
func (s *LLMService) ChatStream(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (driven.TokenStream, error) {
	req := s.request(messages, opts)
	req.Stream = true

	resp, err := s.post(ctx, req, "stream")
	if err != nil {
		return nil, err
	}
	return &tokenStream{body: resp.Body, events: sse.NewReader(resp.Body)}, nil
}

// ChatStructured requests a json_schema response format and validates the
// reply. Sampling is deterministic.
func (s *LLMService) ChatStructured(
	ctx context.Context, messages []driven.ChatMessage, schema *driven.Schema, out any, opts driven.ChatOptions,
) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := json.Marshal(schema.Schema)
	if err != nil {
		return domain.NewProviderError(providerName, "structured", fmt.Errorf("marshal schema: %w", err))
	}

	req := s.request(messages, opts)
	zero := 0.0
	req.Temperature = &zero
	req.ResponseFormat = &responseFormat{
		Type:       "json_schema",
		JSONSchema: &jsonSchema{Name: schema.Name, Schema: raw},
	}

	reply, err := s.complete(ctx, req, "structured")
	if err != nil {
		return err
	}
	if err := schema.Decode([]byte(reply), out); err != nil {
		return domain.NewProviderError(providerName, "structured", err)
	}
	return nil
}

func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) chatCompletionRequest {
	chatMessages := make([]chatCompletionMsg, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatCompletionMsg{Role: msg.Role, Content: messageContent(msg)}
	}

	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := chatCompletionRequest{
		Model:     model,
		Messages:  chatMessages,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	return req
}

// messageContent returns plain text, or text and image_url parts when
// the message carries images. Images travel inline as data URLs.
func messageContent(msg driven.ChatMessage) any {
	if len(msg.Images) == 0 {
		return msg.Content
	}
	parts := []contentPart{{Type: "text", Text: msg.Content}}
	for _, img := range msg.Images {
		url := "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	return parts
}

func (s *LLMService) complete(ctx context.Context, body chatCompletionRequest, op string) (string, error) {
	ctx, span := observability.StartProviderSpan(ctx, providerName, body.Model, op)
	defer span.End()

	resp, err := s.post(ctx, body, op)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	defer resp.Body.Close()

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		err = domain.NewProviderError(providerName, op, fmt.Errorf("decode response: %w", err))
		observability.RecordError(span, err)
		return "", err
	}
	if len(completion.Choices) == 0 {
		err = domain.NewProviderError(providerName, op, errors.New("no choices returned"))
		observability.RecordError(span, err)
		return "", err
	}
	return completion.Choices[0].Message.Content, nil
}

// post sends a completion request. On success the caller owns the response body.
func (s *LLMService) post(ctx context.Context, body chatCompletionRequest, op string) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var completion chatCompletionResponse
		if json.Unmarshal(raw, &completion) == nil && completion.Error != nil {
			return nil, domain.NewProviderError(providerName, op,
				fmt.Errorf("status %d: %s", resp.StatusCode, completion.Error.Message))
		}
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}
	return resp, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key against the /models endpoint without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return domain.NewProviderError(providerName, "ping", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

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
	return nil
}

// tokenStream reads chat completion chunks until the [DONE] sentinel.
type tokenStream struct {
	body   io.ReadCloser
	events *sse.Reader
	done   bool
}

// Next returns the next non-empty delta, or io.EOF after [DONE].
func (t *tokenStream) Next() (string, error) {
	for !t.done {
		ev, err := t.events.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", domain.NewProviderError(providerName, "stream", err)
		}
		if ev.Data == "[DONE]" {
			t.done = true
			break
		}

		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return "", domain.NewProviderError(providerName, "stream", fmt.Errorf("decode chunk: %w", err))
		}
		if chunk.Error != nil {
			return "", domain.NewProviderError(providerName, "stream", errors.New(chunk.Error.Message))
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}
	return "", io.EOF
}

// Close aborts the stream.
func (t *tokenStream) Close() error {
	t.done = true
	return t.body.Close()
}
