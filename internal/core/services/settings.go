package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedTimeout    = "embedding.timeout"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMVerifier     = "llm.verifier_model"
	keyLLMVision       = "llm.vision_model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMRate         = "llm.requests_per_second"
	keyVectorBackend   = "vector_index.backend"
	keyVectorDims      = "vector_index.dimensions"
	keyQdrantAddr      = "vector_index.qdrant_addr"
	keyQdrantColl      = "vector_index.collection"
	keyChatTopK        = "chat.top_k"
	keyAnswerTimeout   = "chat.answer_timeout"
	keyVerifyTimeout   = "chat.verify_timeout"
	keyAnalysisPermits = "analysis.max_concurrent"
	keyAnalysisTimeout = "analysis.timeout"
	keyAnalysisRetries = "analysis.max_retries"
	keyChunkSize       = "ingest.chunk_size"
	keyChunkOverlap    = "ingest.chunk_overlap"
	keyIngestWorkers   = "ingest.workers"
	keyIngestSummarise = "ingest.summarise"
	keyOTLPEndpoint    = "tracing.otlp_endpoint"
)

// settingKind describes how a settable key's value is parsed.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindBool
	kindFloat
	kindDuration
)

// settableKeys lists every key accepted by Set.
var settableKeys = map[string]settingKind{
	keyEmbedProvider:   kindString,
	keyEmbedModel:      kindString,
	keyEmbedBaseURL:    kindString,
	keyEmbedAPIKey:     kindString,
	keyEmbedTimeout:    kindDuration,
	keyLLMProvider:     kindString,
	keyLLMModel:        kindString,
	keyLLMVerifier:     kindString,
	keyLLMVision:       kindString,
	keyLLMBaseURL:      kindString,
	keyLLMAPIKey:       kindString,
	keyLLMRate:         kindFloat,
	keyVectorBackend:   kindString,
	keyVectorDims:      kindInt,
	keyQdrantAddr:      kindString,
	keyQdrantColl:      kindString,
	keyChatTopK:        kindInt,
	keyAnswerTimeout:   kindDuration,
	keyVerifyTimeout:   kindDuration,
	keyAnalysisPermits: kindInt,
	keyAnalysisTimeout: kindDuration,
	keyAnalysisRetries: kindInt,
	keyChunkSize:       kindInt,
	keyChunkOverlap:    kindInt,
	keyIngestWorkers:   kindInt,
	keyIngestSummarise: kindBool,
	keyOTLPEndpoint:    kindString,
}

type configValue struct {
	key   string
	value any
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.getBaseURL(keyEmbedBaseURL, keyEmbedProvider, d.Embedding.BaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
			Timeout:  s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			VerifierModel:     s.configStore.GetString(keyLLMVerifier),
			VisionModel:       s.getString(keyLLMVision, d.LLM.VisionModel),
			BaseURL:           s.getBaseURL(keyLLMBaseURL, keyLLMProvider, d.LLM.BaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerSecond: s.getFloat(keyLLMRate, d.LLM.RequestsPerSecond),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:    s.getBackend(d.VectorIndex.Backend),
			Dimensions: s.getInt(keyVectorDims, d.VectorIndex.Dimensions),
			QdrantAddr: s.getString(keyQdrantAddr, d.VectorIndex.QdrantAddr),
			Collection: s.getString(keyQdrantColl, d.VectorIndex.Collection),
		},
		Chat: domain.ChatSettings{
			TopK:          s.getInt(keyChatTopK, d.Chat.TopK),
			AnswerTimeout: s.getDuration(keyAnswerTimeout, d.Chat.AnswerTimeout),
			VerifyTimeout: s.getDuration(keyVerifyTimeout, d.Chat.VerifyTimeout),
		},
		Analysis: domain.AnalysisSettings{
			MaxConcurrent: s.getInt(keyAnalysisPermits, d.Analysis.MaxConcurrent),
			Timeout:       s.getDuration(keyAnalysisTimeout, d.Analysis.Timeout),
			MaxRetries:    s.getInt(keyAnalysisRetries, d.Analysis.MaxRetries),
		},
		Ingest: domain.IngestSettings{
			ChunkSize:    s.getInt(keyChunkSize, d.Ingest.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, d.Ingest.ChunkOverlap),
			Workers:      s.getInt(keyIngestWorkers, d.Ingest.Workers),
			Summarise:    s.getBool(keyIngestSummarise, d.Ingest.Summarise),
		},
		Tracing: domain.TracingSettings{
			OTLPEndpoint: s.configStore.GetString(keyOTLPEndpoint),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []configValue{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMVerifier, settings.LLM.VerifierModel},
		{keyLLMVision, settings.LLM.VisionModel},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMRate, settings.LLM.RequestsPerSecond},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyVectorDims, settings.VectorIndex.Dimensions},
		{keyQdrantAddr, settings.VectorIndex.QdrantAddr},
		{keyQdrantColl, settings.VectorIndex.Collection},
		{keyChatTopK, settings.Chat.TopK},
		{keyAnswerTimeout, settings.Chat.AnswerTimeout.String()},
		{keyVerifyTimeout, settings.Chat.VerifyTimeout.String()},
		{keyAnalysisPermits, settings.Analysis.MaxConcurrent},
		{keyAnalysisTimeout, settings.Analysis.Timeout.String()},
		{keyAnalysisRetries, settings.Analysis.MaxRetries},
		{keyChunkSize, settings.Ingest.ChunkSize},
		{keyChunkOverlap, settings.Ingest.ChunkOverlap},
		{keyIngestWorkers, settings.Ingest.Workers},
		{keyIngestSummarise, settings.Ingest.Summarise},
		{keyOTLPEndpoint, settings.Tracing.OTLPEndpoint},
	}
	// API keys are only written when set so an empty form never wipes them.
	if settings.Embedding.APIKey != "" {
		values = append(values, configValue{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" {
		values = append(values, configValue{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// Set stores a single setting after parsing it for its key.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s must be a positive duration like 30s", domain.ErrInvalidInput, key)
		}
		parsed = d.String()
	default:
		parsed = strings.TrimSpace(value)
	}

	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid provider %q", domain.ErrInvalidInput, value)
		}
	case keyVectorBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid vector backend %q", domain.ErrInvalidInput, value)
		}
	}

	return s.configStore.Set(key, parsed)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	// Switching models changes the vector size.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.VectorIndex.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetVectorBackend selects the vector index implementation.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid vector backend: %s", backend)
	}
	return s.configStore.Set(keyVectorBackend, backend.String())
}

// Validate checks that the configured providers can serve the vault.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %q is not configured", settings.LLM.Provider)
	}
	if settings.VectorIndex.Dimensions <= 0 {
		return fmt.Errorf("vector dimensions must be positive, got %d", settings.VectorIndex.Dimensions)
	}
	if settings.Ingest.ChunkOverlap >= settings.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			settings.Ingest.ChunkOverlap, settings.Ingest.ChunkSize)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getBaseURL defaults the endpoint only for local providers; cloud
// providers use their own endpoint when base_url is empty.
func (s *SettingsService) getBaseURL(key, providerKey, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	if s.getProvider(providerKey, domain.AIProviderOllama).IsLocal() {
		return defaultVal
	}
	return ""
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	if f := s.configStore.GetFloat(key); f >= 0 {
		return f
	}
	return defaultVal
}

// getDuration falls back to the default for missing, malformed or
// non-positive values.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	val := s.configStore.GetString(keyVectorBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.VectorBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
