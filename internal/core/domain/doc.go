// Package domain defines the core business entities for NeuroVault.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A stored note, memo, image caption, link or document chunk
//   - Node: The parent/child view of a Record
//   - EmbeddingEntry: The vector stored for a Record
//   - EvidenceSnippet: Retrieved text grounding an answer
//   - Verdict: The verification result for an answer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
