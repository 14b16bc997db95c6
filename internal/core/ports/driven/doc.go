// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RecordStore: Record persistence and parent/child links
//   - ConfigStore: Application configuration
//   - PromptStore: Prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector storage/search. Without it, only relational scans work.
//   - EmbeddingService: Generates vector embeddings. Without it, semantic search is disabled.
//   - LLMService: Chat completions. Without it, answering and verification are disabled.
//   - MediaAnalyzer: Image captioning. Without it, images keep a fallback caption.
//   - NormaliserRegistry: File text extraction. Without it, only plain text is ingested.
//
// # Import Rules
//
//   - Can Import: domain package, github.com/google/jsonschema-go
//   - Cannot Import: Any adapter package
package driven
