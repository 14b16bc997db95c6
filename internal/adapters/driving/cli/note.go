package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// defaultTimelineLimit is the page size of the timeline command.
const defaultTimelineLimit = 20

var (
	noteType      string
	noteTags      []string
	noteAt        string
	noteImage     string
	ingestTitle   string
	ingestTags    []string
	ingestMIME    string
	timelineFrom  int
	timelineLimit int
	timelineJSON  bool
	showJSON      bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage records in the vault",
	Long:  `Add, ingest, show and delete records, and browse the timeline.`,
}

var noteAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a note, link or image",
	Long: `Adds a record and embeds it for search.

With --image the file is captioned by the vision model and the caption
becomes the record's content; the text argument is then optional.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNoteAdd,
}

var noteIngestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document",
	Long: `Extracts the text of a document, splits it into overlapping chunks,
embeds every chunk and stores them under a single document record. Ask
about the document with 'neurovault ask --document ID'.

Plain text, Markdown, HTML, Word (.docx) and email (.eml) files are
understood. The format is detected from the file name and content.`,
	Args: cobra.ExactArgs(1),
	RunE: runNoteIngest,
}

var noteShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteShow,
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a record",
	Long:  `Deletes a record. Deleting a document also deletes its chunks.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDelete,
}

var noteTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "List records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runNoteTimeline,
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteType, "type", "t", "text", "media type: text, voice or link")
	noteAddCmd.Flags().StringSliceVar(&noteTags, "tag", nil, "tag to apply (repeatable)")
	noteAddCmd.Flags().StringVar(&noteAt, "at", "", "when the note happened (RFC 3339 or YYYY-MM-DD)")
	noteAddCmd.Flags().StringVar(&noteImage, "image", "", "image file to caption and store")

	noteIngestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (default: file name)")
	noteIngestCmd.Flags().StringSliceVar(&ingestTags, "tag", nil, "tag to apply (repeatable)")
	noteIngestCmd.Flags().StringVar(&ingestMIME, "mime", "", "MIME type of the file (default: detected)")

	noteShowCmd.Flags().BoolVar(&showJSON, "json", false, "output the record as JSON")

	noteTimelineCmd.Flags().IntVar(&timelineFrom, "offset", 0, "number of records to skip")
	noteTimelineCmd.Flags().IntVarP(&timelineLimit, "limit", "n", defaultTimelineLimit, "maximum number of records")
	noteTimelineCmd.Flags().BoolVar(&timelineJSON, "json", false, "output records as JSON")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteIngestCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteDeleteCmd)
	noteCmd.AddCommand(noteTimelineCmd)
	rootCmd.AddCommand(noteCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	record := &domain.Record{Tags: noteTags, Active: true}
	if len(args) == 1 {
		record.Content = args[0]
	}
	if noteAt != "" {
		at, err := parseEventTime(noteAt)
		if err != nil {
			return err
		}
		record.EventAt = &at
	}

	if noteImage != "" {
		return addImage(cmd, record)
	}

	mt, err := domain.ParseMediaType(noteType)
	if err != nil {
		return err
	}
	if mt == domain.MediaTypeImage || mt == domain.MediaTypeDocument {
		return fmt.Errorf("%w: use --image or 'note ingest' for %s records", domain.ErrInvalidInput, mt)
	}
	if strings.TrimSpace(record.Content) == "" {
		return fmt.Errorf("%w: note text is empty", domain.ErrInvalidInput)
	}
	record.MediaType = mt

	if err := recordService.Create(cmd.Context(), record); err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	cmd.Printf("Added %s record #%d\n", record.MediaType, record.ID)
	return nil
}

// addImage stores the record while it is being captioned, then fills in
// the caption and tags and marks it processed so it gets embedded.
func addImage(cmd *cobra.Command, record *domain.Record) error {
	if analysisService == nil {
		return errors.New("analysis service not configured")
	}

	path, err := filepath.Abs(noteImage)
	if err != nil {
		return fmt.Errorf("resolving image path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	record.MediaType = domain.MediaTypeImage
	record.FilePath = path
	record.Processing = true
	if err := recordService.Create(cmd.Context(), record); err != nil {
		return fmt.Errorf("failed to add image: %w", err)
	}

	cmd.Print("Captioning image... ")
	analysis := analysisService.Describe(cmd.Context(), domain.MediaInput{
		MediaType: domain.MediaTypeImage,
		Data:      data,
		Filename:  filepath.Base(path),
	})
	cmd.Println("done")

	if record.Content != "" {
		record.Content += "\n\n" + analysis.Description
	} else {
		record.Content = analysis.Description
	}
	record.Tags = domain.NormaliseTags(append(record.Tags, analysis.Tags...))
	if err := recordService.Update(cmd.Context(), record); err != nil {
		return fmt.Errorf("failed to store caption: %w", err)
	}
	if err := recordService.MarkProcessed(cmd.Context(), record.ID); err != nil {
		return fmt.Errorf("failed to finish image: %w", err)
	}

	cmd.Printf("Added image record #%d\n", record.ID)
	cmd.Printf("  %s\n", analysis.Description)
	return nil
}

func runNoteIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	name := ingestTitle
	if name == "" {
		name = filepath.Base(path)
	}

	start := time.Now()
	id, err := ingestService.IngestFile(cmd.Context(), driving.IngestFileRequest{
		Path:     path,
		MIMEType: ingestMIME,
		Content:  data,
		Title:    ingestTitle,
		Tags:     ingestTags,
	})
	if errors.Is(err, domain.ErrUnsupportedFormat) {
		return fmt.Errorf("cannot read %s: %w (use --mime to override detection)", name, err)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %q as document #%d in %s\n", name, id, time.Since(start).Round(time.Millisecond))
	return nil
}

func runNoteShow(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}

	node, err := recordService.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	r := node.Base()
	if showJSON {
		data, err := recordJSON(r)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Record #%d\n", r.ID)
	cmd.Printf("  Type: %s\n", r.MediaType)
	cmd.Printf("  Time: %s\n", r.EffectiveTime().Format(time.RFC3339))
	if len(r.Tags) > 0 {
		cmd.Printf("  Tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.FilePath != "" {
		cmd.Printf("  File: %s\n", r.FilePath)
	}
	if !r.Active {
		cmd.Println("  Archived")
	}
	if r.Processing {
		cmd.Println("  Processing")
	}

	switch n := node.(type) {
	case *domain.ParentRecord:
		cmd.Printf("  Chunks: %d\n", len(n.ChildIDs))
	case *domain.ChildRecord:
		cmd.Printf("  Document: #%d\n", n.ParentID())
	}

	if r.Summary != nil && *r.Summary != "" {
		cmd.Println()
		cmd.Println("Summary:")
		cmd.Println(*r.Summary)
	}
	cmd.Println()
	cmd.Println(r.Content)
	return nil
}

func runNoteDelete(cmd *cobra.Command, args []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	id, err := parseRecordID(args[0])
	if err != nil {
		return err
	}

	if err := recordService.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	cmd.Printf("Deleted record #%d\n", id)
	return nil
}

func runNoteTimeline(cmd *cobra.Command, _ []string) error {
	if recordService == nil {
		return errors.New("record service not configured")
	}

	records, err := recordService.Timeline(cmd.Context(), timelineFrom, timelineLimit)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	if timelineJSON {
		results := make([]domain.SearchResult, len(records))
		for i := range records {
			results[i] = domain.SearchResult{Record: records[i]}
		}
		return outputSearchJSON(cmd, results)
	}

	if len(records) == 0 {
		cmd.Println("No records yet.")
		return nil
	}
	for i := range records {
		r := &records[i]
		cmd.Printf("#%-6d %s  %-8s %s\n", r.ID, r.EffectiveTime().Format("2006-01-02 15:04"), r.MediaType,
			snippet(r.Content, snippetLength))
	}
	return nil
}

// parseEventTime accepts RFC 3339 or a local date.
func parseEventTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: time %q", domain.ErrInvalidInput, s)
}

func recordJSON(r *domain.Record) ([]byte, error) {
	return json.MarshalIndent(searchResultJSON{
		ID:        r.ID,
		MediaType: r.MediaType.String(),
		Content:   r.Content,
		Summary:   r.Summary,
		Tags:      r.Tags,
		Time:      r.EffectiveTime().Format(time.RFC3339),
		ParentID:  r.ParentID,
	}, "", "  ")
}
