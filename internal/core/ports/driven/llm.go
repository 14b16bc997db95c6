// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// LLMService provides chat completions for answering, verification and summarisation.
// When nil, answering and verification are disabled.
//
// Implementations may include:
//   - Ollama (local models)
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//
// Failures are returned as *domain.ProviderError.
type LLMService interface {
	// Chat conducts a multi-turn conversation and returns the full reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ChatStream starts a streamed reply. The stream is bound to ctx:
	// cancelling ctx aborts the underlying request.
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (TokenStream, error)

	// ChatStructured asks for a JSON reply matching schema, validates it,
	// and decodes it into out. A reply that does not validate yields an
	// error wrapping domain.ErrStructuredOutput.
	ChatStructured(ctx context.Context, messages []ChatMessage, schema *Schema, out any, opts ChatOptions) error

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TokenStream yields answer fragments in order.
type TokenStream interface {
	// Next returns the next fragment. It returns io.EOF after the last one.
	Next() (string, error)

	// Close aborts the stream and releases the connection.
	Close() error
}

// Schema is a JSON schema for structured output together with its resolved form.
type Schema struct {
	// Name identifies the schema to providers that require one.
	Name string

	// Schema is the raw schema sent to the provider.
	Schema *jsonschema.Schema

	// Resolved validates provider replies.
	Resolved *jsonschema.Resolved
}

// SchemaFor derives a Schema from the Go type T.
func SchemaFor[T any](name string) (*Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, err
	}
	return &Schema{Name: name, Schema: s, Resolved: resolved}, nil
}

// Decode validates a raw provider reply against the schema and decodes it into out.
func (s *Schema) Decode(raw []byte, out any) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStructuredOutput, err)
	}
	if err := s.Resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStructuredOutput, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStructuredOutput, err)
	}
	return nil
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string

	// Images are raw image bytes attached to the message (vision models only).
	Images [][]byte
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// Model overrides the service's default model for this call.
	Model string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
