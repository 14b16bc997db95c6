package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMediaType(t *testing.T) {
	tests := []struct {
		input   string
		want    MediaType
		wantErr bool
	}{
		{"text", MediaTypeText, false},
		{" Image ", MediaTypeImage, false},
		{"pdf", MediaTypeDocument, false},
		{"document", MediaTypeDocument, false},
		{"video", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMediaType(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormaliseTags(t *testing.T) {
	got := NormaliseTags([]string{"work", " ideas ", "", "work", "alpha"})
	assert.Equal(t, []string{"alpha", "ideas", "work"}, got)
	assert.Empty(t, NormaliseTags(nil))
}

func TestEmbeddingText(t *testing.T) {
	summary := "A short trip report"
	r := &Record{
		Content:   "We visited Lyon.",
		MediaType: MediaTypeText,
		Tags:      []string{"travel", "france"},
		Summary:   &summary,
	}

	text := EmbeddingText(r)
	assert.Equal(t,
		"Type: text\nTags: travel, france\nSummary: A short trip report\nContent: We visited Lyon.",
		text)

	r.Summary = nil
	assert.NotContains(t, EmbeddingText(r), "Summary:")
}

func TestClassify(t *testing.T) {
	parentID := int64(1)

	node, err := Classify(Record{ID: 1}, nil)
	require.NoError(t, err)
	assert.IsType(t, &StandaloneRecord{}, node)

	node, err = Classify(Record{ID: 1}, []int64{2, 3})
	require.NoError(t, err)
	parent, ok := node.(*ParentRecord)
	require.True(t, ok)
	assert.Equal(t, []int64{2, 3}, parent.ChildIDs)

	node, err = Classify(Record{ID: 2, ParentID: &parentID}, nil)
	require.NoError(t, err)
	child, ok := node.(*ChildRecord)
	require.True(t, ok)
	assert.Equal(t, int64(1), child.ParentID())
	assert.Equal(t, int64(2), child.Base().ID)

	_, err = Classify(Record{ID: 2, ParentID: &parentID}, []int64{5})
	assert.ErrorIs(t, err, ErrHierarchyDepth)
}

func TestParseTimeRange(t *testing.T) {
	tr, err := ParseTimeRange("", "  ")
	require.NoError(t, err)
	assert.Nil(t, tr)

	tr, err = ParseTimeRange("2024-03-01T10:00:00Z", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), tr.Start.UTC())
	assert.True(t, tr.End.IsZero())

	tr, err = ParseTimeRange("2024-03-01", "2024-03-01")
	require.NoError(t, err)
	assert.True(t, tr.Contains(time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)))
	assert.False(t, tr.Contains(time.Date(2024, 3, 2, 0, 0, 0, 0, time.Local)))

	_, err = ParseTimeRange("yesterday", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseTimeRange("2024-03-02", "2024-03-01T00:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
