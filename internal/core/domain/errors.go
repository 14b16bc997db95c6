package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown provider or backend type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Answering and verification are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or failed. Semantic search is disabled; relational scans still work.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("provider error")

	// ErrMalformedEmbedding indicates a stored vector cannot be decoded or used.
	// Affected entries are skipped rather than failing the request.
	ErrMalformedEmbedding = errors.New("malformed embedding")

	// ErrDimensionMismatch indicates a vector does not match the index dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCancelledStream indicates the consumer abandoned an answer stream.
	ErrCancelledStream = errors.New("stream cancelled")

	// ErrEvidenceEmpty marks a retrieval that found nothing.
	// It is a terminal state of the chat protocol, not a failure.
	ErrEvidenceEmpty = errors.New("no evidence")

	// ErrHierarchyDepth indicates a write would nest chunks below chunks.
	ErrHierarchyDepth = errors.New("record hierarchy deeper than two levels")

	// ErrUnsupportedFormat indicates no normaliser can read a file's format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrStructuredOutput indicates a model response did not match its schema.
	ErrStructuredOutput = errors.New("structured output does not match schema")
)

// ProviderError wraps a failure from an embedding, LLM or analysis provider.
type ProviderError struct {
	// Provider names the backend, e.g. "ollama".
	Provider string

	// Op is the failed operation, e.g. "embed" or "chat".
	Op string

	// Err is the underlying cause.
	Err error
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProvider) true for every ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}
