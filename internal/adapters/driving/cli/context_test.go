package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

func TestContextCmd_PrintsSnippets(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.context.snippets = []domain.EvidenceSnippet{
		{SourceRecordID: 11, Text: "Budget is 40k.", Score: 0.91},
		{SourceRecordID: 12, Text: "Approved in March.", Score: 0.5},
	}

	out, err := executeCommand(t, "context", "10", "budget")

	require.NoError(t, err)
	assert.Contains(t, out, "[1] chunk #11 (score 0.910)\nBudget is 40k.")
	assert.Contains(t, out, "[2] chunk #12 (score 0.500)")
	assert.Equal(t, int64(10), ts.context.parentID)
	assert.Equal(t, domain.MaxContextSnippets, ts.context.topK)
}

func TestContextCmd_TopK(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "context", "-k", "5", "10", "budget")

	require.NoError(t, err)
	assert.Contains(t, out, "No passages found.")
	assert.Equal(t, 5, ts.context.topK)
}

func TestContextCmd_Errors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "context", "abc", "q")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ts.context.err = domain.ErrNotFound
	_, err = executeCommand(t, "context", "99", "q")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseRecordID(t *testing.T) {
	id, err := parseRecordID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-1", "x1"} {
		_, err := parseRecordID(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}
