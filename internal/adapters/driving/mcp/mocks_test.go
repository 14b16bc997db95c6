package mcp

import (
	"context"

	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockContextRetriever is a mock implementation of driving.ContextRetriever.
type mockContextRetriever struct {
	snippets []domain.EvidenceSnippet
	err      error
	parentID int64
	topK     int
}

func (m *mockContextRetriever) GetContext(
	_ context.Context, parentID int64, _ string, topK int,
) ([]domain.EvidenceSnippet, error) {
	m.parentID = parentID
	m.topK = topK
	return m.snippets, m.err
}

// mockChatService replays a fixed event sequence.
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

// mockRecordService is a mock implementation of driving.RecordService.
type mockRecordService struct {
	node     domain.Node
	timeline []domain.Record
	err      error
}

func (m *mockRecordService) Create(_ context.Context, _ *domain.Record) error { return m.err }
func (m *mockRecordService) Update(_ context.Context, _ *domain.Record) error { return m.err }
func (m *mockRecordService) MarkProcessed(_ context.Context, _ int64) error   { return m.err }
func (m *mockRecordService) Delete(_ context.Context, _ int64) error          { return m.err }

func (m *mockRecordService) Get(_ context.Context, _ int64) (domain.Node, error) {
	return m.node, m.err
}

func (m *mockRecordService) Timeline(_ context.Context, _, _ int) ([]domain.Record, error) {
	return m.timeline, m.err
}
