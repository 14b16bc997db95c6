package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/logger"
)

const (
	defaultSearchLimit   = 10
	defaultTimelineLimit = 20
	maxPageLimit         = 200
)

// recordJSON is a record as returned by the API.
type recordJSON struct {
	ID         int64    `json:"id"`
	MediaType  string   `json:"media_type"`
	Content    string   `json:"content"`
	Summary    *string  `json:"summary,omitempty"`
	Tags       []string `json:"tags"`
	FilePath   string   `json:"file_path,omitempty"`
	Time       string   `json:"time"`
	CreatedAt  string   `json:"created_at"`
	Active     bool     `json:"active"`
	Processing bool     `json:"processing"`
	ParentID   *int64   `json:"parent_id,omitempty"`
	ChildIDs   []int64  `json:"child_ids,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
}

type searchResponse struct {
	Results []recordJSON `json:"results"`
	Count   int          `json:"count"`
	Ranked  bool         `json:"ranked"`
}

func toRecordJSON(r *domain.Record) recordJSON {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return recordJSON{
		ID:         r.ID,
		MediaType:  r.MediaType.String(),
		Content:    r.Content,
		Summary:    r.Summary,
		Tags:       tags,
		FilePath:   r.FilePath,
		Time:       r.EffectiveTime().Format(time.RFC3339),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		Active:     r.Active,
		Processing: r.Processing,
		ParentID:   r.ParentID,
	}
}

// handleSearch serves GET /api/search.
// Query parameters: q, limit, media_type, start, end, degraded, all.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), defaultSearchLimit)
	if err != nil {
		respondError(w, err)
		return
	}
	opts := domain.SearchOptions{Limit: min(limit, maxPageLimit), IncludeInactive: q.Get("all") == "true"}
	if mt := q.Get("media_type"); mt != "" {
		opts.MediaType, err = domain.ParseMediaType(mt)
		if err != nil {
			respondError(w, err)
			return
		}
	}
	opts.TimeRange, err = domain.ParseTimeRange(q.Get("start"), q.Get("end"))
	if err != nil {
		respondError(w, err)
		return
	}

	query := q.Get("q")
	results, err := s.ports.Search.Search(r.Context(), query, opts)
	if err != nil && q.Get("degraded") == "true" && errors.Is(err, domain.ErrEmbeddingUnavailable) {
		logger.Warn("Embedding unavailable, serving relational scan: %v", err)
		results, err = s.ports.Search.Search(r.Context(), "", opts)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	resp := searchResponse{Results: make([]recordJSON, len(results)), Count: len(results)}
	for i := range results {
		out := toRecordJSON(&results[i].Record)
		if results[i].Ranked {
			resp.Ranked = true
			d := results[i].Distance
			out.Distance = &d
		}
		resp.Results[i] = out
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleTimeline serves GET /api/timeline?offset=&limit=.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		respondError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultTimelineLimit)
	if err != nil {
		respondError(w, err)
		return
	}

	records, err := s.ports.Records.Timeline(r.Context(), offset, min(limit, maxPageLimit))
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]recordJSON, len(records))
	for i := range records {
		out[i] = toRecordJSON(&records[i])
	}
	respondJSON(w, http.StatusOK, out)
}

// handleRecord serves GET /api/records/{id}.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	node, err := s.ports.Records.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	out := toRecordJSON(node.Base())
	if parent, ok := node.(*domain.ParentRecord); ok {
		out.ChildIDs = parent.ChildIDs
	}
	respondJSON(w, http.StatusOK, out)
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}

// intParam parses a non-negative integer query parameter.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", domain.ErrInvalidInput, raw)
	}
	return v, nil
}
