package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// MockRecordService implements driving.RecordService for testing.
type MockRecordService struct {
	TimelineFunc func(ctx context.Context, offset, limit int) ([]domain.Record, error)
	DeleteFunc   func(ctx context.Context, id int64) error
}

func (m *MockRecordService) Create(context.Context, *domain.Record) error { return nil }
func (m *MockRecordService) Update(context.Context, *domain.Record) error { return nil }
func (m *MockRecordService) MarkProcessed(context.Context, int64) error   { return nil }

func (m *MockRecordService) Get(context.Context, int64) (domain.Node, error) {
	return nil, domain.ErrNotFound
}

func (m *MockRecordService) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockRecordService) Timeline(ctx context.Context, offset, limit int) ([]domain.Record, error) {
	if m.TimelineFunc != nil {
		return m.TimelineFunc(ctx, offset, limit)
	}
	return nil, nil
}

func makeRecords(n, firstID int) []domain.Record {
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{
			ID:        int64(firstID + i),
			Content:   fmt.Sprintf("note %d", firstID+i),
			MediaType: domain.MediaTypeText,
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedView(t *testing.T, svc *MockRecordService, records []domain.Record) *View {
	t.Helper()
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)
	v.Update(messages.TimelineLoaded{Records: records})
	return v
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil)

	require.NotNil(t, v)
	assert.NotNil(t, v.styles)
	assert.NotNil(t, v.keymap)
	assert.False(t, v.ready)
	assert.Empty(t, v.Records())
	assert.Nil(t, v.Init())
}

func TestView_Load(t *testing.T) {
	var gotOffset, gotLimit int
	svc := &MockRecordService{
		TimelineFunc: func(_ context.Context, offset, limit int) ([]domain.Record, error) {
			gotOffset, gotLimit = offset, limit
			return makeRecords(3, 1), nil
		},
	}
	v := NewView(nil, nil, svc)

	cmd := v.Load()
	require.NotNil(t, cmd)
	assert.Contains(t, v.View(), "Loading records...")

	v.Update(cmd())

	assert.Equal(t, 0, gotOffset)
	assert.Equal(t, PageSize, gotLimit)
	assert.Len(t, v.Records(), 3)
	assert.NoError(t, v.Err())
	assert.Contains(t, v.View(), "note 1")
	assert.Contains(t, v.View(), "Timeline (1-3)")
}

func TestView_Load_NoService(t *testing.T) {
	v := NewView(nil, nil, nil)

	msg := v.Load()()

	loaded := msg.(messages.TimelineLoaded)
	assert.ErrorIs(t, loaded.Err, ErrNoRecordService)
	v.Update(loaded)
	assert.Contains(t, v.View(), "record service not available")
}

func TestView_EmptyState(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, nil)

	assert.Contains(t, v.View(), "No records yet")
}

func TestView_Navigation(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, makeRecords(3, 1))

	v.Update(key("j"))
	v.Update(key("down"))
	assert.Equal(t, 2, v.SelectedIndex())

	v.Update(key("j"))
	assert.Equal(t, 2, v.SelectedIndex())

	v.Update(key("k"))
	assert.Equal(t, int64(2), v.SelectedRecord().ID)
}

func TestView_Paging(t *testing.T) {
	var offsets []int
	svc := &MockRecordService{
		TimelineFunc: func(_ context.Context, offset, _ int) ([]domain.Record, error) {
			offsets = append(offsets, offset)
			if offset >= 2*PageSize {
				return nil, nil
			}
			return makeRecords(PageSize, offset+1), nil
		},
	}
	v := loadedView(t, svc, makeRecords(PageSize, 1))

	_, cmd := v.Update(key("right"))
	require.NotNil(t, cmd)
	v.Update(cmd())
	assert.Equal(t, PageSize, v.Offset())
	assert.Equal(t, int64(PageSize+1), v.Records()[0].ID)

	// The page past the end is empty, so the current page stays.
	_, cmd = v.Update(key("l"))
	v.Update(cmd())
	assert.Equal(t, PageSize, v.Offset())

	_, cmd = v.Update(key("left"))
	v.Update(cmd())
	assert.Equal(t, 0, v.Offset())
	assert.Equal(t, []int{PageSize, 2 * PageSize, 0}, offsets)
}

func TestView_Paging_LastPageStops(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, makeRecords(3, 1))

	_, cmd := v.Update(key("right"))
	assert.Nil(t, cmd)

	_, cmd = v.Update(key("left"))
	assert.Nil(t, cmd)
}

func TestView_ActionMenu_Show(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, makeRecords(2, 7))

	v.Update(key("enter"))
	require.True(t, v.IsShowingMenu())
	assert.Contains(t, v.View(), "Actions for: #7")

	_, cmd := v.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.RecordSelected{ID: 7, Back: messages.ViewTimeline}, cmd())
	assert.False(t, v.IsShowingMenu())
}

func TestView_ActionMenu_Cancel(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, makeRecords(2, 1))
	v.Update(key("enter"))

	v.Update(key("esc"))

	assert.False(t, v.IsShowingMenu())
}

func TestView_Ask(t *testing.T) {
	records := makeRecords(2, 1)
	records[1].MediaType = domain.MediaTypeDocument
	v := loadedView(t, &MockRecordService{}, records)

	_, cmd := v.Update(key("a"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd().(messages.AskRequested).DocumentID)

	v.Update(key("j"))
	_, cmd = v.Update(key("a"))
	ask := cmd().(messages.AskRequested)
	require.NotNil(t, ask.DocumentID)
	assert.Equal(t, int64(2), *ask.DocumentID)
}

func TestView_Delete(t *testing.T) {
	var deleted []int64
	calls := 0
	svc := &MockRecordService{
		DeleteFunc: func(_ context.Context, id int64) error {
			deleted = append(deleted, id)
			return nil
		},
		TimelineFunc: func(context.Context, int, int) ([]domain.Record, error) {
			calls++
			return makeRecords(1, 2), nil
		},
	}
	v := loadedView(t, svc, makeRecords(2, 1))

	v.Update(key("d"))
	require.True(t, v.IsConfirmingDelete())
	assert.Contains(t, v.View(), "Delete record #1")

	_, cmd := v.Update(key("y"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, messages.RecordDeleted{ID: 1}, msg)

	_, reload := v.Update(msg)
	require.NotNil(t, reload)
	v.Update(reload())

	assert.Equal(t, []int64{1}, deleted)
	assert.Equal(t, 1, calls)
	assert.Len(t, v.Records(), 1)
}

func TestView_Delete_Declined(t *testing.T) {
	svc := &MockRecordService{
		DeleteFunc: func(context.Context, int64) error {
			t.Fatal("delete should not be called")
			return nil
		},
	}
	v := loadedView(t, svc, makeRecords(2, 1))

	v.Update(key("d"))
	_, cmd := v.Update(key("n"))

	assert.Nil(t, cmd)
	assert.False(t, v.IsConfirmingDelete())
}

func TestView_Delete_Error(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, makeRecords(1, 1))

	_, cmd := v.Update(messages.RecordDeleted{ID: 1, Err: errors.New("locked")})

	assert.Nil(t, cmd)
	assert.EqualError(t, v.Err(), "locked")
}

func TestView_EscReturnsToMenu(t *testing.T) {
	v := loadedView(t, &MockRecordService{}, nil)

	_, cmd := v.Update(key("esc"))

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_WindowSize(t *testing.T) {
	v := NewView(nil, nil, nil)

	v.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	assert.True(t, v.ready)
	assert.Equal(t, 22, v.visibleItemCount())
}
