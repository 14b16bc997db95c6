package domain

import (
	"path/filepath"
	"strings"
)

// SourceFile is a file handed to the vault for document ingest.
type SourceFile struct {
	// Path is where the file was read from.
	Path string

	// MIMEType is the content type without parameters.
	// Empty means the type is detected from Path and Content.
	MIMEType string

	// Content is the raw file bytes.
	Content []byte
}

// NormalisedText is the plain text recovered from a SourceFile.
type NormalisedText struct {
	// Title is taken from the file's own metadata when it has any.
	Title string

	// Text is the readable body, ready for chunking.
	Text string

	// Format names the normaliser that produced the text, e.g. "markdown".
	Format string
}

// TitleFromPath turns a file name into a readable title:
// "team_offsite-notes.md" becomes "team offsite notes".
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
