// Package ai builds the model provider and vector index adapters from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/neurovault/internal/adapters/driven/analysis/vision"
	ollamaembed "github.com/custodia-labs/neurovault/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/neurovault/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/neurovault/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/neurovault/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/neurovault/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/neurovault/internal/adapters/driven/llm/ratelimit"
	"github.com/custodia-labs/neurovault/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/neurovault/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

const fixHint = "Run 'neurovault settings set' to fix"

// InitResult holds the adapters built for one process.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VectorIndex      driven.VectorIndex
	MediaAnalyzer    driven.MediaAnalyzer
	Warnings         []string // Non-fatal issues; the affected service is nil.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds every model-facing adapter. Unreachable providers are
// reported as warnings and left nil, so retrieval and chat degrade with
// their own typed errors instead of failing start-up. Only a broken
// vector index is fatal.
//
// localIndex is the index stored next to the records; it serves the
// sqlite backend.
func Init(
	ctx context.Context,
	settings *domain.AppSettings,
	localIndex driven.VectorIndex,
	promptStore driven.PromptStore,
) (*InitResult, error) {
	result := &InitResult{}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: settings.LLM.RequestsPerSecond})

	embedding, err := CreateAndValidateEmbeddingService(&settings.Embedding, settings.VectorIndex.Dimensions)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else if embedding != nil && settings.Embedding.Provider == settings.LLM.Provider {
		embedding = ratelimit.WrapEmbedding(embedding, limiter, settings.Embedding.Provider.String())
	}
	result.EmbeddingService = embedding

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	} else if llm != nil {
		llm = ratelimit.WrapLLM(llm, limiter, settings.LLM.Provider.String())
		result.MediaAnalyzer = vision.NewAnalyzer(llm, promptStore, settings.LLM.VisionModel)
	}
	result.LLMService = llm

	index, err := CreateVectorIndex(ctx, &settings.VectorIndex, localIndex)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorIndex = index

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateVectorIndex returns the index selected by settings.Backend.
func CreateVectorIndex(
	ctx context.Context, settings *domain.VectorIndexSettings, localIndex driven.VectorIndex,
) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.VectorBackendSQLite, "":
		if localIndex == nil {
			return nil, fmt.Errorf("%w: no local vector store", domain.ErrVectorIndexUnavailable)
		}
		return localIndex, nil

	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(settings.Dimensions), nil

	case domain.VectorBackendQdrant:
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		idx, err := qdrant.New(ctx, qdrant.Config{
			Addr:       settings.QdrantAddr,
			Collection: settings.Collection,
			Dimensions: settings.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
		}
		return idx, nil

	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", settings.Backend)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(
	settings *domain.EmbeddingSettings, dimensions int,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings, dimensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrEmbeddingUnavailable, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrLLMUnavailable, err, fixHint)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrLLMUnavailable, err, fixHint)
	}

	return svc, nil
}

// ValidateEmbeddingConfig creates a service from settings and pings it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings, 0)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig creates a service from settings and pings it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the embedding service named by settings.
// Returns nil if the provider is not configured. A zero dimensions uses
// the model's native size.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, dimensions int) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	if dimensions <= 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimensions,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the LLM service named by settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
