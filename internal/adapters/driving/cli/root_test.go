package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// mockSearchService returns one ranked text result.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	queries  []string
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.queries = append(m.queries, query)
	m.lastOpts = opts
	if m.err != nil && query != "" {
		return nil, m.err
	}
	return m.results, nil
}

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

// mockRecordService keeps records in a map and assigns IDs from 1.
type mockRecordService struct {
	records   map[int64]*domain.Record
	nextID    int64
	processed []int64
	deleted   []int64
	err       error
}

func newMockRecordService() *mockRecordService {
	return &mockRecordService{records: make(map[int64]*domain.Record), nextID: 1}
}

func (m *mockRecordService) Create(_ context.Context, r *domain.Record) error {
	if m.err != nil {
		return m.err
	}
	r.ID = m.nextID
	m.nextID++
	r.CreatedAt = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	stored := *r
	m.records[r.ID] = &stored
	return nil
}

func (m *mockRecordService) Update(_ context.Context, r *domain.Record) error {
	if _, ok := m.records[r.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := *r
	m.records[r.ID] = &stored
	return nil
}

func (m *mockRecordService) MarkProcessed(_ context.Context, id int64) error {
	r, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Processing = false
	m.processed = append(m.processed, id)
	return nil
}

func (m *mockRecordService) Get(_ context.Context, id int64) (domain.Node, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var children []int64
	for _, c := range m.records {
		if c.ParentID != nil && *c.ParentID == id {
			children = append(children, c.ID)
		}
	}
	return domain.Classify(*r, children)
}

func (m *mockRecordService) Delete(_ context.Context, id int64) error {
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRecordService) Timeline(_ context.Context, offset, limit int) ([]domain.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Record
	for id := m.nextID - 1; id > 0; id-- {
		if r, ok := m.records[id]; ok && !r.Hidden {
			out = append(out, *r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockIngestService struct {
	lastReq  driving.IngestRequest
	lastFile driving.IngestFileRequest
	id       int64
	err      error
}

func (m *mockIngestService) IngestDocument(_ context.Context, req driving.IngestRequest) (int64, error) {
	m.lastReq = req
	return m.id, m.err
}

func (m *mockIngestService) IngestFile(_ context.Context, req driving.IngestFileRequest) (int64, error) {
	m.lastFile = req
	return m.id, m.err
}

type mockAnalysisService struct {
	analysis domain.MediaAnalysis
	inputs   []domain.MediaInput
}

func (m *mockAnalysisService) Describe(_ context.Context, input domain.MediaInput) domain.MediaAnalysis {
	m.inputs = append(m.inputs, input)
	return m.analysis
}

// testServices exposes the mocks installed by setupTestServices.
type testServices struct {
	search   *mockSearchService
	context  *mockContextRetriever
	chat     *mockChatService
	records  *mockRecordService
	ingest   *mockIngestService
	analysis *mockAnalysisService
	summary  *mockSummaryService
}

// setupTestServices installs mocks for every service and returns a cleanup
// func restoring the previous ones.
func setupTestServices() (*testServices, func()) {
	old := Services{
		Search: searchService, Context: contextRetriever, Chat: chatService, Records: recordService,
		Ingest: ingestService, Analysis: analysisService, Settings: settingsService, Summary: summaryService,
		Prompts: promptWatcher,
	}

	ts := &testServices{
		search: &mockSearchService{results: []domain.SearchResult{{
			Record: domain.Record{
				ID: 1, Content: "Team offsite is in Lisbon", MediaType: domain.MediaTypeText,
				Tags: []string{"work"}, Active: true, CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			},
			Distance: 0.125,
			Ranked:   true,
		}}},
		context:  &mockContextRetriever{},
		chat:     &mockChatService{},
		records:  newMockRecordService(),
		ingest:   &mockIngestService{id: 42},
		analysis: &mockAnalysisService{},
		summary:  &mockSummaryService{},
	}
	SetServices(&Services{
		Search:   ts.search,
		Context:  ts.context,
		Chat:     ts.chat,
		Records:  ts.records,
		Ingest:   ts.ingest,
		Analysis: ts.analysis,
		Settings: settingsService,
		Summary:  ts.summary,
	})

	return ts, func() { SetServices(&old) }
}

// executeCommand runs the root command with args and returns its output.
// Flags are reset afterwards because cobra binds them to package variables.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "neurovault", rootCmd.Use)
}

func TestRootCmd_HasVerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "v", flag.Shorthand)
	}
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"search", "context", "ask", "note", "serve", "mcp", "settings", "summary", "task", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

type stubWatcher struct{ started chan struct{} }

func (w *stubWatcher) Watch(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	return nil
}

func TestWatchPrompts(t *testing.T) {
	old := promptWatcher
	defer func() { promptWatcher = old }()

	promptWatcher = nil
	watchPrompts(context.Background())

	w := &stubWatcher{started: make(chan struct{})}
	promptWatcher = w
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchPrompts(ctx)

	select {
	case <-w.started:
	case <-time.After(time.Second):
		t.Fatal("watcher not started")
	}
}

type mockSummaryService struct {
	summary   *domain.Summary
	tasks     []domain.Record
	err       error
	refreshed bool
	listedAll bool
	updated   map[int64]bool
}

func (m *mockSummaryService) Latest(_ context.Context) (*domain.Summary, error) {
	return m.summary, m.err
}

func (m *mockSummaryService) Refresh(_ context.Context) (*domain.Summary, error) {
	m.refreshed = true
	return m.summary, m.err
}

func (m *mockSummaryService) Tasks(_ context.Context, includeCompleted bool) ([]domain.Record, error) {
	m.listedAll = includeCompleted
	return m.tasks, m.err
}

func (m *mockSummaryService) CompleteTask(_ context.Context, id int64, completed bool) (*domain.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.updated == nil {
		m.updated = make(map[int64]bool)
	}
	m.updated[id] = completed
	r := domain.Record{ID: id, Content: "Renew passport", MediaType: domain.MediaTypeText, Tags: []string{domain.TagTodo}}
	domain.SetCompleted(&r, completed)
	return &r, nil
}
