// Package timeline provides the newest-first record listing for the TUI.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// PageSize is the number of records loaded per page.
const PageSize = 20

// ErrNoRecordService indicates that no record service was provided.
var ErrNoRecordService = errors.New("record service not available")

// ActionOption represents a record action.
type ActionOption int

const (
	ActionShow ActionOption = iota
	ActionAsk
	ActionDelete
	ActionCancel
)

var actionLabels = map[ActionOption]string{
	ActionShow:   "Show Record",
	ActionAsk:    "Ask About This",
	ActionDelete: "Delete",
	ActionCancel: "Cancel",
}

// View is the timeline view.
type View struct {
	styles        *styles.Styles
	keymap        *keymap.KeyMap
	recordService driving.RecordService
	ctx           context.Context

	records       []domain.Record
	offset        int
	selected      int
	width         int
	height        int
	ready         bool
	err           error
	loading       bool
	showingMenu   bool
	menuSelected  ActionOption
	confirmDelete bool
}

// NewView creates a new timeline view.
func NewView(s *styles.Styles, km *keymap.KeyMap, recordService driving.RecordService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:        s,
		keymap:        km,
		recordService: recordService,
		ctx:           context.Background(),
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Load resets the view to the first page and loads it.
func (v *View) Load() tea.Cmd {
	v.offset = 0
	v.selected = 0
	v.showingMenu = false
	v.confirmDelete = false
	return v.loadPage(0)
}

// loadPage returns a command that loads the page starting at offset.
func (v *View) loadPage(offset int) tea.Cmd {
	v.loading = true
	ctx, records := v.ctx, v.recordService
	return func() tea.Msg {
		if records == nil {
			return messages.TimelineLoaded{Offset: offset, Err: ErrNoRecordService}
		}
		page, err := records.Timeline(ctx, offset, PageSize)
		return messages.TimelineLoaded{Offset: offset, Records: page, Err: err}
	}
}

// Update handles messages for the timeline view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		switch {
		case v.confirmDelete:
			return v.handleConfirmKey(msg)
		case v.showingMenu:
			return v.handleMenuKeyMsg(msg)
		default:
			return v.handleKeyMsg(msg)
		}

	case messages.TimelineLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		// An empty page past the first keeps the current one on screen.
		if len(msg.Records) == 0 && msg.Offset > 0 {
			return v, nil
		}
		v.err = nil
		v.offset = msg.Offset
		v.records = msg.Records
		v.selected = min(v.selected, max(len(v.records)-1, 0))
		return v, nil

	case messages.RecordDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.loadPage(v.offset)

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
		}
	case keymap.Matches(k, v.keymap.Down):
		if v.selected < len(v.records)-1 {
			v.selected++
		}
	case keymap.Matches(k, v.keymap.NextPage):
		if len(v.records) == PageSize {
			v.selected = 0
			return v, v.loadPage(v.offset + PageSize)
		}
	case keymap.Matches(k, v.keymap.PrevPage):
		if v.offset > 0 {
			v.selected = 0
			return v, v.loadPage(max(v.offset-PageSize, 0))
		}
	case keymap.Matches(k, v.keymap.Select):
		if len(v.records) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionShow
		}
	case keymap.Matches(k, v.keymap.Ask):
		return v.runAction(ActionAsk)
	case keymap.Matches(k, v.keymap.Delete):
		return v.runAction(ActionDelete)
	case keymap.Matches(k, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case k == "r":
		return v, v.loadPage(v.offset)
	}

	return v, nil
}

// handleMenuKeyMsg handles key presses in action menu mode.
func (v *View) handleMenuKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.menuSelected > ActionShow {
			v.menuSelected--
		}
	case "down", "j":
		if v.menuSelected < ActionCancel {
			v.menuSelected++
		}
	case "enter":
		v.showingMenu = false
		return v.runAction(v.menuSelected)
	case "esc":
		v.showingMenu = false
	}

	return v, nil
}

// handleConfirmKey answers the delete confirmation prompt.
func (v *View) handleConfirmKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirmDelete = false
	rec := v.SelectedRecord()
	if msg.String() != "y" || rec == nil || v.recordService == nil {
		return v, nil
	}

	ctx, records, id := v.ctx, v.recordService, rec.ID
	return v, func() tea.Msg {
		return messages.RecordDeleted{ID: id, Err: records.Delete(ctx, id)}
	}
}

// runAction applies an action to the selected record.
func (v *View) runAction(action ActionOption) (*View, tea.Cmd) {
	rec := v.SelectedRecord()
	if rec == nil {
		return v, nil
	}

	switch action {
	case ActionShow:
		id := rec.ID
		return v, func() tea.Msg {
			return messages.RecordSelected{ID: id, Back: messages.ViewTimeline}
		}
	case ActionAsk:
		req := messages.AskRequested{}
		if rec.MediaType == domain.MediaTypeDocument {
			id := rec.ID
			req.DocumentID = &id
		}
		return v, func() tea.Msg { return req }
	case ActionDelete:
		v.confirmDelete = true
	case ActionCancel:
	}

	return v, nil
}

// visibleItemCount returns the number of records that fit on screen.
func (v *View) visibleItemCount() int {
	return max(v.height-8, 1)
}

// View renders the timeline view.
func (v *View) View() string {
	var b strings.Builder

	title := "Timeline"
	if len(v.records) > 0 {
		title = fmt.Sprintf("Timeline (%d-%d)", v.offset+1, v.offset+len(v.records))
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading records..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.records) == 0:
		b.WriteString(v.styles.Muted.Render("No records yet. Add one with `neurovault note add`."))
	case v.showingMenu:
		b.WriteString(v.renderActionMenu())
		return b.String()
	default:
		start := 0
		if visible := v.visibleItemCount(); v.selected >= visible {
			start = v.selected - visible + 1
		}
		for i := start; i < len(v.records) && i < start+v.visibleItemCount(); i++ {
			b.WriteString(v.renderRecord(i, &v.records[i]))
			b.WriteString("\n")
		}
	}

	if v.confirmDelete {
		if rec := v.SelectedRecord(); rec != nil {
			b.WriteString("\n")
			b.WriteString(v.styles.Warning.Render(fmt.Sprintf("Delete record #%d and its chunks? [y/N]", rec.ID)))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine(v.keymap.TimelineHelp()...)))
	return b.String()
}

// renderRecord renders a single timeline line.
func (v *View) renderRecord(index int, rec *domain.Record) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	preview := rec.Content
	if rec.Summary != nil && *rec.Summary != "" {
		preview = *rec.Summary
	}
	preview = strings.Join(strings.Fields(preview), " ")
	preview = list.Truncate(preview, max(v.width-36, 20))

	meta := fmt.Sprintf("#%-5d %-8s %s", rec.ID, rec.MediaType, rec.EffectiveTime().Format("2006-01-02 15:04"))
	if index == v.selected {
		return v.styles.Selected.Render(indicator + meta + "  " + preview)
	}
	return v.styles.Normal.Render(indicator) + v.styles.Muted.Render(meta) + "  " + v.styles.Normal.Render(preview)
}

// renderActionMenu renders the action menu overlay.
func (v *View) renderActionMenu() string {
	var b strings.Builder

	if rec := v.SelectedRecord(); rec != nil {
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Actions for: #%d", rec.ID)))
		b.WriteString("\n\n")
	}

	for opt := ActionShow; opt <= ActionCancel; opt++ {
		if v.menuSelected == opt {
			b.WriteString(v.styles.Selected.Render("> " + actionLabels[opt]))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + actionLabels[opt]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Records returns the current page.
func (v *View) Records() []domain.Record {
	return v.records
}

// Offset returns the offset of the current page.
func (v *View) Offset() int {
	return v.offset
}

// SelectedIndex returns the currently selected index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedRecord returns the currently selected record.
func (v *View) SelectedRecord() *domain.Record {
	if v.selected < len(v.records) {
		return &v.records[v.selected]
	}
	return nil
}

// IsShowingMenu returns true if the action menu is visible.
func (v *View) IsShowingMenu() bool {
	return v.showingMenu
}

// IsConfirmingDelete returns true while the delete prompt is shown.
func (v *View) IsConfirmingDelete() bool {
	return v.confirmDelete
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
