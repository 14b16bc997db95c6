package driven

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// Normaliser recovers plain text from one family of file formats.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers return 50-89, fallbacks 1-9.
	Priority() int

	// Normalise extracts the readable text of file.
	Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedText, error)
}

// NormaliserRegistry selects the appropriate normaliser for a file.
type NormaliserRegistry interface {
	// Normalise runs the highest-priority normaliser for the file's MIME type.
	// Returns domain.ErrUnsupportedFormat when none matches.
	Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedText, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedMIMETypes returns all MIME types that can be normalised.
	SupportedMIMETypes() []string
}
