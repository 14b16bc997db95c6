package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

type taskJSON struct {
	Task     string `json:"task"`
	Priority string `json:"priority"`
	Timeline string `json:"timeline"`
	RecordID int64  `json:"record_id,omitempty"`
}

type eventJSON struct {
	Title           string `json:"title"`
	At              string `json:"date_time"`
	DurationMinutes int    `json:"duration_minutes"`
	RecordID        int64  `json:"record_id,omitempty"`
}

type summaryJSON struct {
	Summary   string      `json:"summary"`
	Tasks     []taskJSON  `json:"tasks"`
	Events    []eventJSON `json:"events"`
	RecordIDs []int64     `json:"record_ids"`
	CreatedAt string      `json:"created_at"`
}

// taskRecordJSON is a task record with its completion state.
type taskRecordJSON struct {
	recordJSON
	Completed bool `json:"completed"`
}

func toSummaryJSON(s *domain.Summary) summaryJSON {
	out := summaryJSON{
		Summary:   s.Text,
		Tasks:     make([]taskJSON, len(s.Tasks)),
		Events:    make([]eventJSON, len(s.Events)),
		RecordIDs: s.RecordIDs,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
	if out.RecordIDs == nil {
		out.RecordIDs = []int64{}
	}
	for i, t := range s.Tasks {
		out.Tasks[i] = taskJSON{Task: t.Content, Priority: string(t.Priority), Timeline: string(t.Timeline), RecordID: t.RecordID}
	}
	for i, e := range s.Events {
		out.Events[i] = eventJSON{
			Title:           e.Title,
			At:              e.At.Format(time.RFC3339),
			DurationMinutes: int(e.Duration / time.Minute),
			RecordID:        e.RecordID,
		}
	}
	return out
}

func toTaskRecordJSON(r *domain.Record) taskRecordJSON {
	return taskRecordJSON{recordJSON: toRecordJSON(r), Completed: domain.IsCompleted(r)}
}

// handleSummary serves GET /api/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.summaryAvailable(w) {
		return
	}
	summary, err := s.ports.Summary.Latest(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryJSON(summary))
}

// handleSummaryRefresh serves POST /api/summary/refresh.
func (s *Server) handleSummaryRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.summaryAvailable(w) {
		return
	}
	summary, err := s.ports.Summary.Refresh(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryJSON(summary))
}

// handleTasks serves GET /api/tasks?include_completed=.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if !s.summaryAvailable(w) {
		return
	}
	all, err := boolParam(r.URL.Query().Get("include_completed"), false)
	if err != nil {
		respondError(w, err)
		return
	}

	tasks, err := s.ports.Summary.Tasks(r.Context(), all)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]taskRecordJSON, len(tasks))
	for i := range tasks {
		out[i] = toTaskRecordJSON(&tasks[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCompleteTask serves PATCH /api/tasks/{id}/complete?completed=.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.summaryAvailable(w) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	completed, err := boolParam(r.URL.Query().Get("completed"), true)
	if err != nil {
		respondError(w, err)
		return
	}

	task, err := s.ports.Summary.CompleteTask(r.Context(), id, completed)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTaskRecordJSON(task))
}

func (s *Server) summaryAvailable(w http.ResponseWriter) bool {
	if s.ports.Summary == nil {
		respondError(w, fmt.Errorf("summary: %w", domain.ErrLLMUnavailable))
		return false
	}
	return true
}

// boolParam parses an optional boolean query parameter.
func boolParam(raw string, def bool) (bool, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", domain.ErrInvalidInput, raw)
	}
	return v, nil
}
