package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MediaType identifies the kind of content a record holds.
type MediaType string

// Supported media types.
const (
	// MediaTypeText is a plain text note.
	MediaTypeText MediaType = "text"

	// MediaTypeVoice is a transcribed voice memo.
	MediaTypeVoice MediaType = "voice"

	// MediaTypeImage is a captioned image.
	MediaTypeImage MediaType = "image"

	// MediaTypeLink is a saved web link.
	MediaTypeLink MediaType = "link"

	// MediaTypeDocument is an ingested document (parent) or one of its chunks.
	MediaTypeDocument MediaType = "document"
)

// IsValid returns true if the media type is recognised.
func (m MediaType) IsValid() bool {
	switch m {
	case MediaTypeText, MediaTypeVoice, MediaTypeImage, MediaTypeLink, MediaTypeDocument:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m MediaType) String() string {
	return string(m)
}

// ParseMediaType converts user input into a MediaType.
// "pdf" is accepted as an alias of document.
func ParseMediaType(s string) (MediaType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "pdf" {
		return MediaTypeDocument, nil
	}
	m := MediaType(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: media type %q", ErrInvalidInput, s)
	}
	return m, nil
}

// AllMediaTypes returns every supported media type.
func AllMediaTypes() []MediaType {
	return []MediaType{
		MediaTypeText,
		MediaTypeVoice,
		MediaTypeImage,
		MediaTypeLink,
		MediaTypeDocument,
	}
}

// Record is a single stored item in the vault.
// Records form at most a two-level hierarchy: a document parent
// and its chunk children. A child never has children of its own.
type Record struct {
	// ID is assigned by the RecordStore on first save.
	ID int64

	// Content is the primary text payload.
	Content string

	// Summary is an optional generated summary.
	Summary *string

	// MediaType classifies the content.
	MediaType MediaType

	// Tags is a normalised set of labels.
	Tags []string

	// FilePath points at an attached file, if any.
	FilePath string

	// CreatedAt is when the record was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time

	// EventAt is the real-world time the record refers to, when known.
	EventAt *time.Time

	// Active is false for soft-deleted or archived records.
	Active bool

	// Hidden records (document chunks) are excluded from timelines.
	Hidden bool

	// Processing is true while content is not yet final.
	// Records are never embedded while processing.
	Processing bool

	// ParentID links a chunk to its parent document.
	ParentID *int64
}

// IsChild reports whether the record is a chunk of another record.
func (r *Record) IsChild() bool {
	return r.ParentID != nil
}

// EffectiveTime returns EventAt when set, otherwise CreatedAt.
// Time-range predicates are evaluated against this value.
func (r *Record) EffectiveTime() time.Time {
	if r.EventAt != nil {
		return *r.EventAt
	}
	return r.CreatedAt
}

// NormaliseTags trims, de-duplicates and sorts tags.
func NormaliseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// EmbeddingText builds the enriched text that is embedded for a record.
// Type and tags are included so that metadata influences similarity.
func EmbeddingText(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Type: %s\n", r.MediaType)
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
	if r.Summary != nil && *r.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", *r.Summary)
	}
	fmt.Fprintf(&b, "Content: %s", r.Content)
	return b.String()
}

// TimeRange is an inclusive time window.
// A zero Start or End leaves that side open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.Start.IsZero() && t.Before(tr.Start) {
		return false
	}
	if !tr.End.IsZero() && t.After(tr.End) {
		return false
	}
	return true
}

// ParseTimeRange builds a range from optional RFC 3339 or YYYY-MM-DD bounds.
// A date-only end covers that whole day. Both bounds empty yields nil.
func ParseTimeRange(start, end string) (*TimeRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}

	var tr TimeRange
	var err error
	if start != "" {
		if tr.Start, _, err = parseTimeBound(start); err != nil {
			return nil, err
		}
	}
	if end != "" {
		var dateOnly bool
		if tr.End, dateOnly, err = parseTimeBound(end); err != nil {
			return nil, err
		}
		if dateOnly {
			tr.End = tr.End.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !tr.Start.IsZero() && !tr.End.IsZero() && tr.End.Before(tr.Start) {
		return nil, fmt.Errorf("%w: time range ends before it starts", ErrInvalidInput)
	}
	return &tr, nil
}

func parseTimeBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: time %q is neither RFC 3339 nor YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, true, nil
}
