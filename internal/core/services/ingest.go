package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
	"github.com/custodia-labs/neurovault/internal/logger"
	"github.com/custodia-labs/neurovault/internal/observability"
	"github.com/custodia-labs/neurovault/internal/postprocessors/chunker"
	"github.com/custodia-labs/neurovault/internal/prompts"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

const (
	// summaryMaxChars is the length requested from the summariser.
	summaryMaxChars = 300

	// summaryInputChars caps the text sent for summarisation.
	summaryInputChars = 8000

	// titleMaxChars caps a title derived from the document text.
	titleMaxChars = 80
)

// Chunk tags applied to every child record.
const (
	tagDocument = "document"
	tagChunk    = "chunk"
)

// IngestService stores long documents as a parent record with chunk children.
type IngestService struct {
	records driving.RecordService
	chunker *chunker.Processor
	pool    *WorkerPool
	llm     driven.LLMService
	prompts driven.PromptStore

	normalisers driven.NormaliserRegistry
}

// NewIngestService creates a new ingest service.
// The llm parameter is optional; without it documents are not summarised.
func NewIngestService(
	records driving.RecordService,
	settings domain.IngestSettings,
	llm driven.LLMService,
	promptStore driven.PromptStore,
) *IngestService {
	s := &IngestService{
		records: records,
		chunker: chunker.New(chunker.WithChunkSize(settings.ChunkSize), chunker.WithOverlap(settings.ChunkOverlap)),
		pool:    NewWorkerPool(settings.Workers),
		prompts: promptStore,
	}
	if settings.Summarise {
		s.llm = llm
	}
	return s
}

// SetNormalisers enables IngestFile for formats other than plain text.
func (s *IngestService) SetNormalisers(registry driven.NormaliserRegistry) {
	s.normalisers = registry
}

// IngestFile extracts the text of req.Content and ingests it.
// Without normalisers the content is taken as UTF-8 text.
func (s *IngestService) IngestFile(ctx context.Context, req driving.IngestFileRequest) (int64, error) {
	file := &domain.SourceFile{Path: req.Path, MIMEType: req.MIMEType, Content: req.Content}

	extracted := &domain.NormalisedText{Title: domain.TitleFromPath(req.Path), Text: string(req.Content)}
	if s.normalisers != nil {
		// Parsing is CPU bound, so it runs on the pool rather than the caller.
		out, err := Map(ctx, s.pool, []*domain.SourceFile{file}, s.normalisers.Normalise)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", filepath.Base(req.Path), err)
		}
		extracted = out[0]
		logger.Debug("Extracted %d chars of %s from %s", len(extracted.Text), extracted.Format, req.Path)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = extracted.Title
	}
	return s.IngestDocument(ctx, driving.IngestRequest{
		Title:    title,
		Text:     extracted.Text,
		FilePath: req.Path,
		Tags:     req.Tags,
	})
}

// IngestDocument stores the document and returns the parent record ID.
//
// The parent stays in the processing state, and therefore unembedded,
// until every chunk is stored and embedded. If the chunks cannot be
// stored the parent is removed again.
func (s *IngestService) IngestDocument(ctx context.Context, req driving.IngestRequest) (int64, error) {
	logger.Section("Document Ingest")

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return 0, fmt.Errorf("%w: document has no text", domain.ErrInvalidInput)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = deriveTitle(text)
	}

	ctx, span := observability.StartSpan(ctx, "ingest",
		attribute.Int("ingest.chars", len(text)))
	defer span.End()
	start := time.Now()

	parent := &domain.Record{
		Content:    title,
		MediaType:  domain.MediaTypeDocument,
		Tags:       append([]string{tagDocument}, req.Tags...),
		FilePath:   req.FilePath,
		Processing: true,
	}
	if err := s.records.Create(ctx, parent); err != nil {
		observability.RecordError(span, err)
		return 0, fmt.Errorf("create document: %w", err)
	}

	chunks, err := s.chunker.Split(ctx, text)
	if err != nil {
		s.abort(ctx, parent.ID)
		return 0, fmt.Errorf("chunk document: %w", err)
	}
	logger.Info("Document %d: %d chunks", parent.ID, len(chunks))
	span.SetAttributes(attribute.Int("ingest.chunks", len(chunks)))

	// Children are saved in order so their IDs follow the text.
	childIDs := make([]int64, 0, len(chunks))
	for i, chunk := range chunks {
		child := &domain.Record{
			Content:    chunk,
			MediaType:  domain.MediaTypeDocument,
			Tags:       []string{tagDocument, tagChunk, fmt.Sprintf("part_%d", i+1)},
			Hidden:     true,
			Processing: true,
			ParentID:   &parent.ID,
		}
		if err := s.records.Create(ctx, child); err != nil {
			observability.RecordError(span, err)
			s.abort(ctx, parent.ID)
			return 0, fmt.Errorf("create chunk %d: %w", i+1, err)
		}
		childIDs = append(childIDs, child.ID)
	}

	if _, err := Map(ctx, s.pool, childIDs, func(ctx context.Context, id int64) (struct{}, error) {
		return struct{}{}, s.records.MarkProcessed(ctx, id)
	}); err != nil {
		observability.RecordError(span, err)
		s.abort(ctx, parent.ID)
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	if summary := s.summarise(ctx, text); summary != "" {
		parent.Summary = &summary
		if err := s.records.Update(ctx, parent); err != nil {
			logger.Warn("Could not store summary for document %d: %v", parent.ID, err)
		}
	}

	if err := s.records.MarkProcessed(ctx, parent.ID); err != nil {
		return 0, fmt.Errorf("finish document: %w", err)
	}

	logger.Elapsed(fmt.Sprintf("Ingested document %d", parent.ID), start)
	return parent.ID, nil
}

// summarise returns a short summary of text, or "" when unavailable.
func (s *IngestService) summarise(ctx context.Context, text string) string {
	if s.llm == nil {
		return ""
	}

	runes := []rune(text)
	if len(runes) > summaryInputChars {
		text = string(runes[:summaryInputChars])
	}
	messages := []driven.ChatMessage{{
		Role:    "user",
		Content: fmt.Sprintf(prompts.Load(s.prompts, driven.PromptSummarise), summaryMaxChars, text),
	}}

	summary, err := s.llm.Chat(ctx, messages, driven.ChatOptions{Temperature: 0.2})
	if err != nil {
		logger.Warn("Summarisation failed: %v", err)
		return ""
	}
	return strings.TrimSpace(summary)
}

// abort removes a partially ingested document.
func (s *IngestService) abort(ctx context.Context, parentID int64) {
	// The caller's ctx may already be cancelled; cleanup must still run.
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.records.Delete(cleanupCtx, parentID); err != nil {
		logger.Error("cleanup of document %d failed: %v", parentID, err)
	}
}

func deriveTitle(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	runes := []rune(line)
	if len(runes) > titleMaxChars {
		return string(runes[:titleMaxChars]) + "..."
	}
	return line
}
