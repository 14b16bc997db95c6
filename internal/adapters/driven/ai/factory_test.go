package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// fakeOllama answers the connectivity check used by Ping.
func fakeOllama(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL is a server that has already shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		result.Close()
	})

	t.Run("close with services", func(t *testing.T) {
		emb, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama}, 0)
		require.NoError(t, err)
		llm, err := CreateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama})
		require.NoError(t, err)

		result := &InitResult{EmbeddingService: emb, LLMService: llm, VectorIndex: memory.NewVectorIndex(3)}
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		errContains string
	}{
		{name: "nil settings returns nil", wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:     "ollama provider creates service",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"},
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI, APIKey: "test-key", Model: "text-embedding-3-small",
			},
		},
		{
			name:     "openai without key is unconfigured",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name:        "anthropic provider returns error",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantNil:     true,
			errContains: "anthropic does not support embeddings",
		},
		{
			name:     "unknown provider is unconfigured",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings, 0)

			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
			} else {
				assert.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
			} else {
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		name       string
		model      string
		dimensions int
		want       int
	}{
		{"known model uses table", "mxbai-embed-large", 0, 1024},
		{"unknown model uses adapter default", "custom-model", 0, 768},
		{"explicit dimensions win", "nomic-embed-text", 512, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(
				&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: tt.model}, tt.dimensions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.Dimensions())
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
		model    string
	}{
		{name: "nil settings returns nil", wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name:     "ollama",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "gemma3:4b"},
			model:    "gemma3:4b",
		},
		{
			name:     "openai",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o"},
			model:    "gpt-4o",
		},
		{
			name:     "anthropic",
			settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k", Model: "claude-x"},
			model:    "claude-x",
		},
		{
			name:     "cloud provider without key is unconfigured",
			settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)

			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := fakeOllama(t)

		svc, err := CreateAndValidateEmbeddingService(
			&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}, 0)

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("unreachable", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(
			&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}, 0)

		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.ErrorIs(t, err, domain.ErrProvider)
		assert.Contains(t, err.Error(), "neurovault settings set")
	})

	t.Run("anthropic", func(t *testing.T) {
		_, err := CreateAndValidateEmbeddingService(
			&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, 0)

		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("unconfigured", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{}, 0)

		assert.NoError(t, err)
		assert.Nil(t, svc)
	})
}

func TestCreateAndValidateLLMService(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := fakeOllama(t)

		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("unreachable", func(t *testing.T) {
		svc, err := CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)})

		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestValidateConfig(t *testing.T) {
	srv := fakeOllama(t)

	assert.NoError(t, ValidateEmbeddingConfig(nil))
	assert.NoError(t, ValidateLLMConfig(nil))
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.Error(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}))
	assert.Error(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}))
}

func TestCreateVectorIndex(t *testing.T) {
	local := memory.NewVectorIndex(3)

	t.Run("sqlite uses the local index", func(t *testing.T) {
		idx, err := CreateVectorIndex(context.Background(),
			&domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite}, local)
		require.NoError(t, err)
		assert.Same(t, local, idx)
	})

	t.Run("sqlite without local index", func(t *testing.T) {
		_, err := CreateVectorIndex(context.Background(),
			&domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite}, nil)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})

	t.Run("memory", func(t *testing.T) {
		idx, err := CreateVectorIndex(context.Background(),
			&domain.VectorIndexSettings{Backend: domain.VectorBackendMemory, Dimensions: 4}, local)
		require.NoError(t, err)
		assert.IsType(t, &memory.VectorIndex{}, idx)
	})

	t.Run("qdrant without dimensions", func(t *testing.T) {
		_, err := CreateVectorIndex(context.Background(),
			&domain.VectorIndexSettings{Backend: domain.VectorBackendQdrant, QdrantAddr: "localhost:1"}, local)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := CreateVectorIndex(context.Background(), &domain.VectorIndexSettings{Backend: "faiss"}, local)
		assert.ErrorContains(t, err, "unsupported vector backend")
	})
}

func TestInit(t *testing.T) {
	t.Run("all providers reachable", func(t *testing.T) {
		srv := fakeOllama(t)
		settings := domain.DefaultAppSettings()
		settings.Embedding.BaseURL = srv.URL
		settings.LLM.BaseURL = srv.URL
		settings.LLM.RequestsPerSecond = 5
		local := memory.NewVectorIndex(768)

		result, err := Init(context.Background(), &settings, local, nil)

		require.NoError(t, err)
		defer result.Close()
		assert.Empty(t, result.Warnings)
		assert.NotNil(t, result.EmbeddingService)
		assert.NotNil(t, result.LLMService)
		assert.NotNil(t, result.MediaAnalyzer)
		assert.Same(t, local, result.VectorIndex)
		assert.Equal(t, 768, result.EmbeddingService.Dimensions())
	})

	t.Run("unreachable providers degrade to warnings", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Embedding.BaseURL = deadURL(t)
		settings.LLM.BaseURL = deadURL(t)

		result, err := Init(context.Background(), &settings, memory.NewVectorIndex(768), nil)

		require.NoError(t, err)
		assert.Len(t, result.Warnings, 2)
		assert.Nil(t, result.EmbeddingService)
		assert.Nil(t, result.LLMService)
		assert.Nil(t, result.MediaAnalyzer)
		assert.NotNil(t, result.VectorIndex)
	})

	t.Run("broken vector index is fatal", func(t *testing.T) {
		srv := fakeOllama(t)
		settings := domain.DefaultAppSettings()
		settings.Embedding.BaseURL = srv.URL
		settings.LLM.BaseURL = srv.URL
		settings.VectorIndex.Backend = "faiss"

		_, err := Init(context.Background(), &settings, nil, nil)

		assert.Error(t, err)
	})
}
