package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "meaning")
	assert.Contains(t, searchCmd.Long, "--degraded")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := executeCommand(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "search", "offsite")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "#1 text  2026-03-02  (0.125)")
	assert.Contains(t, out, "Team offsite is in Lisbon")
	assert.Contains(t, out, "Tags: work")
	assert.Equal(t, []string{"offsite"}, ts.search.queries)
	assert.Equal(t, 10, ts.search.lastOpts.Limit)
}

func TestSearchCmd_Filters(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "search", "-n", "3", "--type", "image", "--start", "2026-01-01", "--end", "2026-01-31", "receipts")

	require.NoError(t, err)
	assert.Equal(t, 3, ts.search.lastOpts.Limit)
	assert.Equal(t, domain.MediaTypeImage, ts.search.lastOpts.MediaType)
	require.NotNil(t, ts.search.lastOpts.TimeRange)
	assert.False(t, ts.search.lastOpts.IncludeInactive)
}

func TestSearchCmd_InvalidFilters(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "search", "--type", "video", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = executeCommand(t, "search", "--start", "last week", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "search", "--json", "offsite")
	require.NoError(t, err)

	var results []searchResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, "text", results[0].MediaType)
	require.NotNil(t, results[0].Distance)
	assert.InDelta(t, 0.125, *results[0].Distance, 1e-9)
}

func TestSearchCmd_NoResults(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.results = nil

	out, err := executeCommand(t, "search", "nothing")

	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_Degraded(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.search.err = domain.ErrEmbeddingUnavailable

	_, err := executeCommand(t, "search", "offsite")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	ts.search.queries = nil
	out, err := executeCommand(t, "search", "--degraded", "offsite")
	require.NoError(t, err)
	assert.Equal(t, []string{"offsite", ""}, ts.search.queries)
	assert.Contains(t, out, "Results:")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	_, err := executeCommand(t, "search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n b\t\tc", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
	assert.Equal(t, "héé...", snippet("héééé", 3))
}
