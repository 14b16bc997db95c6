package driving

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// RecordService manages records and keeps their embeddings in sync.
type RecordService interface {
	// Create stores a new record and embeds it unless it is still processing.
	Create(ctx context.Context, record *domain.Record) error

	// Update stores changes and re-embeds when embedded fields changed.
	Update(ctx context.Context, record *domain.Record) error

	// MarkProcessed clears the processing flag and embeds the final content.
	MarkProcessed(ctx context.Context, id int64) error

	// Get returns the record with its place in the hierarchy.
	Get(ctx context.Context, id int64) (domain.Node, error)

	// Delete removes a record, its children and their vectors.
	Delete(ctx context.Context, id int64) error

	// Timeline lists visible records, newest first.
	Timeline(ctx context.Context, offset, limit int) ([]domain.Record, error)
}

// IngestService turns long documents into a parent record with chunk children.
type IngestService interface {
	// IngestDocument stores the document and returns the parent record ID.
	IngestDocument(ctx context.Context, req IngestRequest) (int64, error)

	// IngestFile extracts the text of a file and ingests it as a document.
	IngestFile(ctx context.Context, req IngestFileRequest) (int64, error)
}

// IngestRequest describes a document to ingest.
type IngestRequest struct {
	// Title becomes the parent record's content.
	Title string

	// Text is the extracted document text.
	Text string

	// FilePath is the stored file location.
	FilePath string

	// Tags are applied to the parent.
	Tags []string
}

// IngestFileRequest describes a file to ingest.
type IngestFileRequest struct {
	// Path is the file location; it also seeds the title.
	Path string

	// MIMEType overrides detection when set.
	MIMEType string

	// Content is the raw file bytes.
	Content []byte

	// Title overrides the title found in the file.
	Title string

	// Tags are applied to the parent.
	Tags []string
}

// AnalysisService captions media files.
type AnalysisService interface {
	// Describe returns a caption for the media. Failures yield the fallback caption.
	Describe(ctx context.Context, input domain.MediaInput) domain.MediaAnalysis
}
