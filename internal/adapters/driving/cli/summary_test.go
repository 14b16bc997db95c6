package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

func weekSummary() *domain.Summary {
	return &domain.Summary{
		Text: "Busy week: a dentist visit and travel paperwork.",
		Tasks: []domain.Task{
			{Content: "Renew passport", Priority: domain.TaskPriorityHigh, Timeline: domain.TaskTimelineThisWeek, RecordID: 3},
		},
		Events: []domain.Event{
			{Title: "Dentist", At: time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC), Duration: 30 * time.Minute, RecordID: 4},
		},
		RecordIDs: []int64{2, 1},
	}
}

func TestSummary(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.summary.summary = weekSummary()

	out, err := executeCommand(t, "summary")

	require.NoError(t, err)
	assert.Contains(t, out, "Busy week")
	assert.Contains(t, out, "#3      High   This Week  Renew passport")
	assert.Contains(t, out, "2026-05-01 15:00  Dentist (30m0s)")
	assert.False(t, ts.summary.refreshed)
}

func TestSummary_RefreshJSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.summary.summary = weekSummary()

	out, err := executeCommand(t, "summary", "--refresh", "--json")

	require.NoError(t, err)
	assert.True(t, ts.summary.refreshed)
	var got summaryOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []taskOutput{{ID: 3, Task: "Renew passport", Priority: "High", Timeline: "This Week"}}, got.Tasks)
	assert.Equal(t, 30, got.Events[0].DurationMinutes)
	assert.Equal(t, []int64{2, 1}, got.RecordIDs)
}

func TestSummary_NothingToSummarise(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.summary.err = domain.ErrNotFound

	out, err := executeCommand(t, "summary")

	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to summarise yet.")
}

func TestSummary_ModelUnavailable(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.summary.err = domain.ErrLLMUnavailable

	_, err := executeCommand(t, "summary")

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestTaskList(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.summary.tasks = []domain.Record{
		{ID: 3, Content: "Renew passport", Tags: []string{"ai-generated", "high", "this-week", "todo"}},
		{ID: 5, Content: "Book hotel", Tags: []string{"done"}},
	}

	out, err := executeCommand(t, "task", "list", "--all")

	require.NoError(t, err)
	assert.True(t, ts.summary.listedAll)
	assert.Contains(t, out, "[ ] #3      Renew passport  (high, this-week)")
	assert.Contains(t, out, "[x] #5      Book hotel\n")
}

func TestTaskList_Empty(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "task", "list")

	require.NoError(t, err)
	assert.False(t, ts.summary.listedAll)
	assert.Contains(t, out, "No open tasks.")
}

func TestTaskDone(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "task", "done", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed #3 Renew passport")
	assert.True(t, ts.summary.updated[3])

	out, err = executeCommand(t, "task", "done", "--undo", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Reopened #3 Renew passport")
	assert.False(t, ts.summary.updated[3])
}

func TestTaskDone_Errors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "task", "done", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	ts.summary.err = domain.ErrNotFound
	_, err = executeCommand(t, "task", "done", "9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
