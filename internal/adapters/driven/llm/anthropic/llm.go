// Package anthropic provides an LLM service adapter using Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/neurovault/internal/adapters/driven/llm/sse"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/observability"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

const providerName = "anthropic"

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	// AnthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout bounds non-streaming requests (default: 120s).
	Timeout time.Duration
}

// LLMService provides LLM operations using Anthropic API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []tool            `json:"tools,omitempty"`
	ToolChoice  *toolChoice       `json:"tool_choice,omitempty"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string    `json:"stop_reason"`
	Error      *apiError `json:"error,omitempty"`
}

// streamEvent covers the stream event payloads this adapter reads.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *apiError `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
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

	reply, err := s.send(ctx, s.request(messages, opts), "chat")
	if err != nil {
		return "", err
	}

	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range reply.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// ChatStream starts a streamed reply delivered as server-sent events.
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

// ChatStructured forces a single tool call whose input schema is the
// requested schema, then validates the tool input. Sampling is deterministic.
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
	req.Tools = []tool{{Name: schema.Name, Description: "Record the structured reply.", InputSchema: raw}}
	req.ToolChoice = &toolChoice{Type: "tool", Name: schema.Name}

	reply, err := s.send(ctx, req, "structured")
	if err != nil {
		return err
	}
	for _, block := range reply.Content {
		if block.Type == "tool_use" && block.Name == schema.Name {
			if err := schema.Decode(block.Input, out); err != nil {
				return domain.NewProviderError(providerName, "structured", err)
			}
			return nil
		}
	}
	return domain.NewProviderError(providerName, "structured",
		fmt.Errorf("%w: no %s tool call in reply", domain.ErrStructuredOutput, schema.Name))
}

// request splits out the system prompt, which Anthropic takes as a
// top-level field rather than a message.
func (s *LLMService) request(messages []driven.ChatMessage, opts driven.ChatOptions) messagesRequest {
	var system []string
	apiMessages := make([]messagesMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		apiMessages = append(apiMessages, messagesMessage{Role: msg.Role, Content: contentBlocks(msg)})
	}

	model := s.model
	if opts.Model != "" {
		model = opts.Model
	}

	// Anthropic requires max_tokens to be set
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	req := messagesRequest{
		Model:     model,
		Messages:  apiMessages,
		MaxTokens: maxTokens,
		System:    strings.Join(system, "\n\n"),
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	return req
}

func contentBlocks(msg driven.ChatMessage) []contentBlock {
	blocks := make([]contentBlock, 0, len(msg.Images)+1)
	for _, img := range msg.Images {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: http.DetectContentType(img),
				Data:      base64.StdEncoding.EncodeToString(img),
			},
		})
	}
	return append(blocks, contentBlock{Type: "text", Text: msg.Content})
}

func (s *LLMService) send(ctx context.Context, body messagesRequest, op string) (*messagesResponse, error) {
	ctx, span := observability.StartProviderSpan(ctx, providerName, body.Model, op)
	defer span.End()

	resp, err := s.post(ctx, body, op)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	var reply messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		err = domain.NewProviderError(providerName, op, fmt.Errorf("decode response: %w", err))
		observability.RecordError(span, err)
		return nil, err
	}
	if len(reply.Content) == 0 {
		err = domain.NewProviderError(providerName, op, errors.New("no response content returned"))
		observability.RecordError(span, err)
		return nil, err
	}
	return &reply, nil
}

// post sends a messages request. On success the caller owns the response body.
func (s *LLMService) post(ctx context.Context, body messagesRequest, op string) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("create request: %w", err))
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var reply messagesResponse
		if json.Unmarshal(raw, &reply) == nil && reply.Error != nil {
			return nil, domain.NewProviderError(providerName, op,
				fmt.Errorf("status %d: %s", resp.StatusCode, reply.Error.Message))
		}
		return nil, domain.NewProviderError(providerName, op, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}
	return resp, nil
}

func (s *LLMService) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /v1/models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return domain.NewProviderError(providerName, "ping", err)
	}
	s.setHeaders(req)

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

// tokenStream reads text deltas until message_stop.
type tokenStream struct {
	body   io.ReadCloser
	events *sse.Reader
	done   bool
}

// Next returns the next text delta, or io.EOF after message_stop.
func (t *tokenStream) Next() (string, error) {
	for !t.done {
		ev, err := t.events.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return "", domain.NewProviderError(providerName, "stream", err)
		}

		var payload streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			return "", domain.NewProviderError(providerName, "stream", fmt.Errorf("decode event: %w", err))
		}
		switch payload.Type {
		case "error":
			msg := "stream error"
			if payload.Error != nil {
				msg = payload.Error.Message
			}
			return "", domain.NewProviderError(providerName, "stream", errors.New(msg))
		case "message_stop":
			t.done = true
		case "content_block_delta":
			if payload.Delta.Type == "text_delta" && payload.Delta.Text != "" {
				return payload.Delta.Text, nil
			}
		}
	}
	return "", io.EOF
}

// Close aborts the stream.
func (t *tokenStream) Close() error {
	t.done = true
	return t.body.Close()
}
