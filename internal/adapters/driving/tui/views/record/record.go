// Package record provides the single record view for the TUI.
package record

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// ErrNoRecordService indicates that no record service was provided.
var ErrNoRecordService = errors.New("record service not available")

// View shows one record with its metadata and scrollable content.
type View struct {
	styles        *styles.Styles
	recordService driving.RecordService
	ctx           context.Context

	id           int64
	back         messages.ViewType
	node         domain.Node
	header       []string
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
	loading      bool
}

// NewView creates a new record view.
func NewView(s *styles.Styles, recordService driving.RecordService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:        s,
		recordService: recordService,
		ctx:           context.Background(),
		back:          messages.ViewMenu,
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

// Open loads the record. Esc returns to back.
func (v *View) Open(id int64, back messages.ViewType) tea.Cmd {
	v.id = id
	v.back = back
	v.node = nil
	v.header = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true

	ctx, records := v.ctx, v.recordService
	return func() tea.Msg {
		if records == nil {
			return messages.RecordLoaded{Err: ErrNoRecordService}
		}
		node, err := records.Get(ctx, id)
		return messages.RecordLoaded{Node: node, Err: err}
	}
}

// Update handles messages for the record view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RecordLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.node = msg.Node
		v.layout()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown", "ctrl+d":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "p":
		// Jump from a chunk to its document.
		if child, ok := v.node.(*domain.ChildRecord); ok {
			return v, v.Open(child.ParentID(), v.back)
		}
	case "a":
		if id := v.documentID(); id != nil {
			return v, func() tea.Msg { return messages.AskRequested{DocumentID: id} }
		}
	case "esc":
		back := v.back
		return v, func() tea.Msg {
			return messages.ViewChanged{View: back}
		}
	}

	return v, nil
}

// documentID returns the document the record belongs to, if any.
func (v *View) documentID() *int64 {
	switch n := v.node.(type) {
	case *domain.ParentRecord:
		id := n.Record.ID
		return &id
	case *domain.ChildRecord:
		id := n.ParentID()
		return &id
	}
	return nil
}

// layout builds the metadata header and wraps the content to the view width.
func (v *View) layout() {
	if v.node == nil {
		return
	}
	rec := v.node.Base()

	v.header = []string{
		fmt.Sprintf("Type: %s", rec.MediaType),
		fmt.Sprintf("Time: %s", rec.EffectiveTime().Format("2006-01-02 15:04")),
	}
	if len(rec.Tags) > 0 {
		v.header = append(v.header, "Tags: "+strings.Join(rec.Tags, ", "))
	}
	if rec.FilePath != "" {
		v.header = append(v.header, "File: "+rec.FilePath)
	}
	switch n := v.node.(type) {
	case *domain.ParentRecord:
		v.header = append(v.header, fmt.Sprintf("Chunks: %d", len(n.ChildIDs)))
	case *domain.ChildRecord:
		v.header = append(v.header, fmt.Sprintf("Document: #%d", n.ParentID()))
	}
	if rec.Processing {
		v.header = append(v.header, "Status: processing")
	}

	var body strings.Builder
	if rec.Summary != nil && *rec.Summary != "" {
		body.WriteString("Summary: ")
		body.WriteString(*rec.Summary)
		body.WriteString("\n\n")
	}
	body.WriteString(rec.Content)

	contentWidth := max(v.width-4, 20)
	wrapped := lipgloss.NewStyle().Width(contentWidth).Render(body.String())
	v.lines = strings.Split(wrapped, "\n")
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

// visibleLines returns the number of content lines that can be displayed.
func (v *View) visibleLines() int {
	return max(v.height-len(v.header)-7, 1)
}

// maxScrollOffset returns the maximum scroll offset.
func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// View renders the record view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Record #%d", v.id)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)))
	b.WriteString("\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading record..."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	case v.node == nil:
		b.WriteString(v.styles.Muted.Render("(No record)"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	for _, line := range v.header {
		b.WriteString(v.styles.Muted.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	visible := v.visibleLines()
	for i := v.scrollOffset; i < len(v.lines) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.styles.Normal.Render(v.lines[i]))
		b.WriteString("\n")
	}

	if len(v.lines) > visible {
		b.WriteString("\n")
		percentage := 0
		if v.maxScrollOffset() > 0 {
			percentage = v.scrollOffset * 100 / v.maxScrollOffset()
		}
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d%%] Line %d-%d of %d",
			percentage,
			v.scrollOffset+1,
			min(v.scrollOffset+visible, len(v.lines)),
			len(v.lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

// renderHelp renders the help footer for the current record.
func (v *View) renderHelp() string {
	help := "[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom"
	if _, ok := v.node.(*domain.ChildRecord); ok {
		help += "  [p] document"
	}
	if v.documentID() != nil {
		help += "  [a] ask"
	}
	return v.styles.Help.Render(help + "  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.layout()
}

// Node returns the loaded record.
func (v *View) Node() domain.Node {
	return v.node
}

// Lines returns the wrapped content lines.
func (v *View) Lines() []string {
	return v.lines
}

// ScrollOffset returns the first visible content line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
