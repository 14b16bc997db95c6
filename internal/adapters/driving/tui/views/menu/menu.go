// Package menu provides the main navigation menu view for the TUI.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
)

// Item represents a single menu option.
type Item struct {
	Label string
	Hint  string
	Key   string // single-key shortcut, empty for none
	View  messages.ViewType
	Quit  bool
}

// View represents the main menu view.
type View struct {
	styles   *styles.Styles
	items    []Item
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates a new menu view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		items: []Item{
			{Label: "Search", Key: "/", View: messages.ViewSearch,
				Hint: "Find notes and documents by meaning, or browse by type and date"},
			{Label: "Ask", Key: "a", View: messages.ViewChat,
				Hint: "Ask a question; answers are grounded in your vault and verified"},
			{Label: "Timeline", Key: "t", View: messages.ViewTimeline,
				Hint: "Everything you saved, newest first"},
			{Label: "Settings", Key: "s", View: messages.ViewSettings,
				Hint: "Providers, models, vector index and timeouts"},
			{Label: "Help", Key: "?", View: messages.ViewHelp,
				Hint: "Key bindings"},
			{Label: "Quit", Key: "q", Quit: true},
		},
		width:  80,
		height: 24,
	}
}

// Init initialises the menu view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
			return v, nil
		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
			return v, nil
		case "enter":
			return v, v.activate(v.items[v.selected])
		}

		for i, item := range v.items {
			if item.Key != "" && item.Key == msg.String() {
				v.selected = i
				return v, v.activate(item)
			}
		}
	}

	return v, nil
}

func (v *View) activate(item Item) tea.Cmd {
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg {
		return messages.ViewChanged{View: item.View}
	}
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("NeuroVault"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Personal Knowledge Vault"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%-10s %s", item.Label, v.styles.Muted.Render("["+item.Key+"]"))
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + label))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + label))
		}
		b.WriteString("\n")
	}

	if hint := v.items[v.selected].Hint; hint != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(hint))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] navigate  [enter] select  or press a shortcut"))

	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}
