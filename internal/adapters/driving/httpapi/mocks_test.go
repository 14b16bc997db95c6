package httpapi

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// mockSearchService answers with fixed results. When failFirst is set the
// first ranked query fails with err.
type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	failFirst bool
	queries   []string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	m.lastOpts = opts
	if m.failFirst {
		if query != "" {
			return nil, m.err
		}
		return m.results, nil
	}
	return m.results, m.err
}

type mockRecordService struct {
	node       domain.Node
	timeline   []domain.Record
	err        error
	lastOffset int
	lastLimit  int
}

func (m *mockRecordService) Create(_ context.Context, _ *domain.Record) error { return m.err }
func (m *mockRecordService) Update(_ context.Context, _ *domain.Record) error { return m.err }
func (m *mockRecordService) MarkProcessed(_ context.Context, _ int64) error   { return m.err }
func (m *mockRecordService) Delete(_ context.Context, _ int64) error          { return m.err }

func (m *mockRecordService) Get(_ context.Context, _ int64) (domain.Node, error) {
	return m.node, m.err
}

func (m *mockRecordService) Timeline(_ context.Context, offset, limit int) ([]domain.Record, error) {
	m.lastOffset = offset
	m.lastLimit = limit
	return m.timeline, m.err
}

type mockChatService struct {
	events  []domain.ChatEvent
	err     error
	lastReq domain.ChatRequest
}

func (m *mockChatService) Ask(_ context.Context, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan domain.ChatEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type mockSummaryService struct {
	summary     *domain.Summary
	tasks       []domain.Record
	err         error
	refreshed   int
	includeDone bool
	completedID int64
	completed   bool
}

func (m *mockSummaryService) Latest(_ context.Context) (*domain.Summary, error) {
	return m.summary, m.err
}

func (m *mockSummaryService) Refresh(_ context.Context) (*domain.Summary, error) {
	m.refreshed++
	return m.summary, m.err
}

func (m *mockSummaryService) Tasks(_ context.Context, includeCompleted bool) ([]domain.Record, error) {
	m.includeDone = includeCompleted
	return m.tasks, m.err
}

func (m *mockSummaryService) CompleteTask(_ context.Context, id int64, completed bool) (*domain.Record, error) {
	m.completedID = id
	m.completed = completed
	if m.err != nil {
		return nil, m.err
	}
	r := domain.Record{ID: id, Content: "Renew passport", MediaType: domain.MediaTypeText, Tags: []string{"todo"}, Active: true}
	domain.SetCompleted(&r, completed)
	return &r, nil
}
