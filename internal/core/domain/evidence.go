package domain

import "strings"

// EvidenceSeparator delimits snippets in the context handed to the models.
const EvidenceSeparator = "\n---\n"

// MaxContextSnippets caps the number of chunks used as document evidence.
const MaxContextSnippets = 3

// EvidenceSnippet is a piece of retrieved text used to ground an answer.
// Snippets live for a single request and are never persisted.
type EvidenceSnippet struct {
	// SourceRecordID is the record the text came from.
	SourceRecordID int64

	// Text is the raw record content.
	Text string

	// Score is the similarity to the query (higher is closer).
	Score float64
}

// JoinEvidence concatenates snippet texts with EvidenceSeparator.
func JoinEvidence(snippets []EvidenceSnippet) string {
	parts := make([]string, len(snippets))
	for i, s := range snippets {
		parts[i] = s.Text
	}
	return strings.Join(parts, EvidenceSeparator)
}
