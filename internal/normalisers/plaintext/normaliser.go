// Package plaintext provides the fallback Normaliser for text files.
package plaintext

import (
	"bytes"
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/tab-separated-values",
		"text/yaml",
		"text/toml",
		"text/x-go",
		"text/x-python",
		"text/x-shellscript",
		"text/x-sql",
		"text/javascript",
		"text/css",
		"application/json",
		"application/xml",
		"text/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the file as text. Content that is not valid UTF-8 is
// read as Windows-1252, which covers most legacy notes. Files containing
// NUL bytes are binary and rejected.
func (n *Normaliser) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedText, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}
	text, err := Decode(file.Content)
	if err != nil {
		return nil, err
	}
	return &domain.NormalisedText{
		Title:  domain.TitleFromPath(file.Path),
		Text:   text,
		Format: "text",
	}, nil
}

// Decode converts file bytes to a UTF-8 string.
func Decode(content []byte) (string, error) {
	if bytes.IndexByte(content, 0) >= 0 {
		return "", domain.ErrUnsupportedFormat
	}
	content = bytes.TrimPrefix(content, utf8BOM)
	if utf8.Valid(content) {
		return string(content), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(content)
	if err != nil {
		return "", domain.ErrUnsupportedFormat
	}
	return string(decoded), nil
}
