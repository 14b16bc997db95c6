package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// MockSearchService implements driving.SearchService for testing.
type MockSearchService struct {
	SearchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

func (m *MockSearchService) Search(
	ctx context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, opts)
	}
	return []domain.SearchResult{}, nil
}

// Helper function to create test search results.
func testSearchResults() []domain.SearchResult {
	parent := int64(10)
	return []domain.SearchResult{
		{
			Record:   domain.Record{ID: 1, Content: "Offsite in Lisbon", MediaType: domain.MediaTypeText},
			Distance: 0.1,
			Ranked:   true,
		},
		{
			Record:   domain.Record{ID: 11, Content: "Budget chunk", MediaType: domain.MediaTypeDocument, ParentID: &parent},
			Distance: 0.2,
			Ranked:   true,
		},
	}
}

func readyView(svc *MockSearchService) *View {
	v := NewView(styles.DefaultStyles(), keymap.DefaultKeyMap(), svc)
	v.SetDimensions(100, 40)
	return v
}

func typeQuery(v *View, q string) {
	for _, r := range q {
		v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil)

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.NotNil(t, v.keymap)
	assert.True(t, v.InputFocused())
	assert.False(t, v.Ready())
	assert.Equal(t, 80, v.Width())
	assert.Equal(t, 24, v.Height())
}

func TestView_View_NotReady(t *testing.T) {
	assert.Equal(t, "Initialising...", NewView(nil, nil, nil).View())
}

func TestView_TypingUpdatesQuery(t *testing.T) {
	v := readyView(&MockSearchService{})

	typeQuery(v, "lisbon")

	assert.Equal(t, "lisbon", v.Query())
}

func TestView_EnterWithEmptyQueryBrowsesRecent(t *testing.T) {
	var queries []string
	svc := &MockSearchService{
		SearchFunc: func(_ context.Context, query string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
			queries = append(queries, query)
			return []domain.SearchResult{{Record: domain.Record{ID: 3, Content: "newest note"}}}, nil
		},
	}
	v := readyView(svc)
	typeQuery(v, "   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.Equal(t, []string{""}, queries)
	assert.False(t, v.InputFocused())
	out := v.View()
	assert.Contains(t, out, "Recent records, newest first.")
	assert.Contains(t, out, "newest note")
}

func TestView_TabCyclesMediaFilter(t *testing.T) {
	var got []domain.MediaType
	svc := &MockSearchService{
		SearchFunc: func(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
			got = append(got, opts.MediaType)
			return nil, nil
		},
	}
	v := readyView(svc)

	// Before any search tab only changes the filter.
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Nil(t, cmd)
	assert.Equal(t, domain.MediaTypeText, v.MediaFilter())

	typeQuery(v, "receipt")
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []domain.MediaType{domain.MediaTypeText, domain.MediaTypeDocument}, got)
	assert.Contains(t, v.View(), "Showing document")
}

func TestNextMedia(t *testing.T) {
	assert.Equal(t, domain.MediaTypeText, nextMedia(""))
	assert.Equal(t, domain.MediaType(""), nextMedia(domain.MediaTypeLink))
	assert.Equal(t, domain.MediaType(""), nextMedia("fax"))
}

func TestView_Search(t *testing.T) {
	var gotOpts domain.SearchOptions
	svc := &MockSearchService{
		SearchFunc: func(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
			gotOpts = opts
			assert.Equal(t, "lisbon", query)
			return testSearchResults(), nil
		},
	}
	v := readyView(svc)
	typeQuery(v, "lisbon")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, v.InputFocused())

	msg := cmd()
	completed, ok := msg.(messages.SearchCompleted)
	require.True(t, ok)
	assert.False(t, completed.Degraded)
	assert.Equal(t, resultLimit, gotOpts.Limit)

	v.Update(completed)
	assert.Len(t, v.Results(), 2)
	assert.NoError(t, v.Err())
	assert.Contains(t, v.View(), "Offsite in Lisbon")
}

func TestView_Search_DegradedFallback(t *testing.T) {
	var queries []string
	svc := &MockSearchService{
		SearchFunc: func(_ context.Context, query string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
			queries = append(queries, query)
			if query != "" {
				return nil, domain.ErrEmbeddingUnavailable
			}
			return testSearchResults()[:1], nil
		},
	}
	v := readyView(svc)

	msg := v.performSearch("lisbon")()

	completed := msg.(messages.SearchCompleted)
	assert.True(t, completed.Degraded)
	assert.Equal(t, []string{"lisbon", ""}, queries)

	v.Update(completed)
	assert.True(t, v.Degraded())
	assert.Contains(t, v.View(), "unranked")
}

func TestView_Search_Error(t *testing.T) {
	svc := &MockSearchService{
		SearchFunc: func(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
			return nil, errors.New("index offline")
		},
	}
	v := readyView(svc)

	v.Update(v.performSearch("x")())

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "index offline")
}

func TestView_Search_NoService(t *testing.T) {
	v := readyView(nil)
	v.searchService = nil

	msg := v.performSearch("x")()

	errMsg, ok := msg.(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, errMsg.Err, ErrNoSearchService)
}

func TestView_ResultsNavigation(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults()})

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 1, v.SelectedIndex())

	v.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, v.SelectedIndex())

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.True(t, v.InputFocused())
	assert.Equal(t, "", v.Query())
}

func TestView_ActionMenu_ShowRecord(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults()})

	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, v.actionMenu)
	assert.Equal(t, []string{actionShow, actionCancel}, v.actionMenu.actions)
	assert.Contains(t, v.View(), actionShow)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	selected, ok := cmd().(messages.RecordSelected)
	require.True(t, ok)
	assert.Equal(t, int64(1), selected.ID)
	assert.Equal(t, messages.ViewSearch, selected.Back)
	assert.Nil(t, v.actionMenu)
}

func TestView_ActionMenu_AskAboutDocument(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults()})
	v.Update(tea.KeyMsg{Type: tea.KeyDown})

	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, v.actionMenu)
	assert.Equal(t, []string{actionShow, actionAsk, actionCancel}, v.actionMenu.actions)

	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	ask, ok := cmd().(messages.AskRequested)
	require.True(t, ok)
	require.NotNil(t, ask.DocumentID)
	assert.Equal(t, int64(10), *ask.DocumentID)
}

func TestView_ActionMenu_Cancel(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults()})
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Nil(t, cmd)
	assert.Nil(t, v.actionMenu)
}

func TestView_AskKey_NonDocumentAsksVault(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults()})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	require.NotNil(t, cmd)
	ask := cmd().(messages.AskRequested)
	assert.Nil(t, ask.DocumentID)
}

func TestView_EscReturnsToMenu(t *testing.T) {
	v := readyView(&MockSearchService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestDocumentID(t *testing.T) {
	parent := int64(3)
	tests := []struct {
		name   string
		record domain.Record
		want   *int64
	}{
		{"text", domain.Record{ID: 1, MediaType: domain.MediaTypeText}, nil},
		{"document parent", domain.Record{ID: 3, MediaType: domain.MediaTypeDocument}, &parent},
		{"document chunk", domain.Record{ID: 4, MediaType: domain.MediaTypeDocument, ParentID: &parent}, &parent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, documentID(&domain.SearchResult{Record: tt.record}))
		})
	}
}

func TestView_Reset(t *testing.T) {
	v := readyView(&MockSearchService{})
	v.Update(messages.SearchCompleted{Results: testSearchResults(), Degraded: true})

	v.Reset()

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Results())
	assert.False(t, v.Degraded())
	assert.NoError(t, v.Err())
}

func TestView_WithContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	var got context.Context
	svc := &MockSearchService{
		SearchFunc: func(ctx context.Context, _ string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
			got = ctx
			return nil, nil
		},
	}
	v := readyView(svc).WithContext(ctx)

	v.performSearch("x")()

	assert.Equal(t, "v", got.Value(key{}))
}
