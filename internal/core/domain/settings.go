package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Timeout bounds a single embedding call.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the answering model name.
	Model string

	// VerifierModel is the model used for verification.
	// Empty means the answering model is reused.
	VerifierModel string

	// VisionModel is the model used for image analysis.
	VisionModel string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// RequestsPerSecond rate-limits provider calls. Zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EffectiveVerifierModel returns the model used for verification.
func (l LLMSettings) EffectiveVerifierModel() string {
	if l.VerifierModel != "" {
		return l.VerifierModel
	}
	return l.Model
}

// VectorBackend selects the VectorIndex implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendSQLite stores vectors next to the records in SQLite.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendQdrant stores vectors in a Qdrant collection.
	VectorBackendQdrant VectorBackend = "qdrant"

	// VectorBackendMemory keeps vectors in process memory.
	VectorBackendMemory VectorBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendSQLite, VectorBackendQdrant, VectorBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// Description returns a human-readable description.
func (b VectorBackend) Description() string {
	switch b {
	case VectorBackendSQLite:
		return "SQLite (local file)"
	case VectorBackendQdrant:
		return "Qdrant (server)"
	case VectorBackendMemory:
		return "In-memory (not persisted)"
	default:
		return string(b)
	}
}

// AllVectorBackends returns every supported vector backend.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{
		VectorBackendSQLite,
		VectorBackendQdrant,
		VectorBackendMemory,
	}
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the index implementation.
	Backend VectorBackend

	// Dimensions is the embedding vector size.
	Dimensions int

	// QdrantAddr is the gRPC address of the Qdrant server.
	QdrantAddr string

	// Collection is the Qdrant collection name.
	Collection string
}

// ChatSettings holds answer and verification settings.
type ChatSettings struct {
	// TopK is the number of evidence snippets per answer.
	TopK int

	// AnswerTimeout bounds the whole answer generation.
	AnswerTimeout time.Duration

	// VerifyTimeout bounds the verification call.
	VerifyTimeout time.Duration
}

// AnalysisSettings holds heavy media analysis settings.
type AnalysisSettings struct {
	// MaxConcurrent is the size of the permit pool.
	MaxConcurrent int

	// Timeout bounds a single analysis attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// IngestSettings holds document chunking settings.
type IngestSettings struct {
	// ChunkSize is the chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by adjacent chunks.
	ChunkOverlap int

	// Workers bounds the chunking worker pool.
	Workers int

	// Summarise generates a parent summary with the LLM.
	Summarise bool
}

// TracingSettings holds OpenTelemetry settings.
type TracingSettings struct {
	// OTLPEndpoint is the collector address. Empty disables tracing.
	OTLPEndpoint string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// VectorIndex holds vector index settings.
	VectorIndex VectorIndexSettings

	// Chat holds answer and verification settings.
	Chat ChatSettings

	// Analysis holds media analysis settings.
	Analysis AnalysisSettings

	// Ingest holds document chunking settings.
	Ingest IngestSettings

	// Tracing holds tracing settings.
	Tracing TracingSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Everything points at a local Ollama so the vault works offline.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    "embeddinggemma",
			BaseURL:  "http://localhost:11434",
			Timeout:  30 * time.Second,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOllama,
			Model:       "gemma3:4b",
			VisionModel: "gemma3:4b",
			BaseURL:     "http://localhost:11434",
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendSQLite,
			Dimensions: 768,
			QdrantAddr: "localhost:6334",
			Collection: "neurovault",
		},
		Chat: ChatSettings{
			TopK:          MaxContextSnippets,
			AnswerTimeout: 2 * time.Minute,
			VerifyTimeout: 60 * time.Second,
		},
		Analysis: AnalysisSettings{
			MaxConcurrent: 1,
			Timeout:       2 * time.Minute,
			MaxRetries:    2,
		},
		Ingest: IngestSettings{
			ChunkSize:    2000,
			ChunkOverlap: 200,
			Workers:      4,
			Summarise:    true,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "embeddinggemma",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "gemma3:4b",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"embeddinggemma":    768,
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
