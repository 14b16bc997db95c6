package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

func weekSummary() *domain.Summary {
	return &domain.Summary{
		Text: "Busy week.",
		Tasks: []domain.Task{
			{Content: "Renew passport", Priority: domain.TaskPriorityHigh, Timeline: domain.TaskTimelineThisWeek, RecordID: 3},
		},
		Events: []domain.Event{
			{Title: "Dentist", At: time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC), Duration: 30 * time.Minute, RecordID: 4},
		},
		RecordIDs: []int64{2, 1},
		CreatedAt: time.Date(2026, 4, 27, 8, 0, 0, 0, time.UTC),
	}
}

func summaryServer(t *testing.T, summary *mockSummaryService) *Server {
	t.Helper()
	return newTestServer(t, &Ports{Search: &mockSearchService{}, Records: &mockRecordService{}, Summary: summary})
}

func TestSummary(t *testing.T) {
	summary := &mockSummaryService{summary: weekSummary()}
	s := summaryServer(t, summary)

	rec := do(t, s, http.MethodGet, "/api/summary", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[summaryJSON](t, rec)
	assert.Equal(t, "Busy week.", got.Summary)
	assert.Equal(t, []taskJSON{{Task: "Renew passport", Priority: "High", Timeline: "This Week", RecordID: 3}}, got.Tasks)
	assert.Equal(t, []eventJSON{{Title: "Dentist", At: "2026-05-01T15:00:00Z", DurationMinutes: 30, RecordID: 4}}, got.Events)
	assert.Equal(t, []int64{2, 1}, got.RecordIDs)
	assert.Equal(t, 0, summary.refreshed)
}

func TestSummary_Refresh(t *testing.T) {
	summary := &mockSummaryService{summary: weekSummary()}
	s := summaryServer(t, summary)

	rec := do(t, s, http.MethodPost, "/api/summary/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, summary.refreshed)
}

func TestSummary_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nothing to summarise", domain.ErrNotFound, http.StatusNotFound},
		{"no model", domain.ErrLLMUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summaryServer(t, &mockSummaryService{err: tt.err})
			assert.Equal(t, tt.want, do(t, s, http.MethodGet, "/api/summary", "").Code)
			assert.Equal(t, tt.want, do(t, s, http.MethodPost, "/api/summary/refresh", "").Code)
		})
	}

	t.Run("no summary service", func(t *testing.T) {
		s := newTestServer(t, &Ports{Search: &mockSearchService{}, Records: &mockRecordService{}})
		for _, target := range []string{"/api/summary", "/api/tasks"} {
			assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, target, "").Code, target)
		}
	})
}

func TestTasks(t *testing.T) {
	summary := &mockSummaryService{tasks: []domain.Record{
		{ID: 3, Content: "Renew passport", MediaType: domain.MediaTypeText, Tags: []string{"todo"}, Active: true},
		{ID: 5, Content: "Book hotel", MediaType: domain.MediaTypeText, Tags: []string{"done"}, Active: true},
	}}
	s := summaryServer(t, summary)

	rec := do(t, s, http.MethodGet, "/api/tasks?include_completed=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]taskRecordJSON](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.False(t, got[0].Completed)
	assert.True(t, got[1].Completed)
	assert.True(t, summary.includeDone)

	rec = do(t, s, http.MethodGet, "/api/tasks?include_completed=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTask(t *testing.T) {
	summary := &mockSummaryService{}
	s := summaryServer(t, summary)

	rec := do(t, s, http.MethodPatch, "/api/tasks/3/complete", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[taskRecordJSON](t, rec)
	assert.True(t, got.Completed)
	assert.Equal(t, []string{"done"}, got.Tags)
	assert.Equal(t, int64(3), summary.completedID)
	assert.True(t, summary.completed)

	rec = do(t, s, http.MethodPatch, "/api/tasks/3/complete?completed=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[taskRecordJSON](t, rec).Completed)
	assert.False(t, summary.completed)
}

func TestCompleteTask_Errors(t *testing.T) {
	s := summaryServer(t, &mockSummaryService{err: domain.ErrInvalidInput})

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/api/tasks/abc/complete", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/api/tasks/3/complete", "").Code)

	s = summaryServer(t, &mockSummaryService{err: domain.ErrNotFound})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPatch, "/api/tasks/9/complete", "").Code)
}
