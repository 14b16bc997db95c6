package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/record"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/settings"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/views/timeline"
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	// menuView is the main navigation menu.
	menuView *menu.View

	// searchView is the styled search view component.
	searchView *search.View

	// chatView asks questions and shows verified answers.
	chatView *chat.View

	// timelineView lists records newest first.
	timelineView *timeline.View

	// recordView shows a single record.
	recordView *record.View

	// settingsView is the settings configuration view component.
	settingsView *settings.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// pending runs on Init, set by StartChat.
	pending tea.Cmd

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:        ports,
		ctx:          context.Background(),
		styles:       s,
		menuView:     menu.NewView(s),
		searchView:   search.NewView(s, km, ports.Search),
		chatView:     chat.NewView(s, km, ports.Chat),
		timelineView: timeline.NewView(s, km, ports.Records),
		recordView:   record.NewView(s, ports.Records),
		settingsView: settings.NewView(s, ports.Settings),
		currentView:  messages.ViewMenu, // Start with menu
	}, nil
}

// WithContext sets the context for the app and every view that calls a service.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.chatView.WithContext(ctx)
	a.timelineView.WithContext(ctx)
	a.recordView.WithContext(ctx)
	return a
}

// StartChat opens the app on the chat view and asks req once the program starts.
func (a *App) StartChat(req domain.ChatRequest) *App {
	a.chatView.Reset()
	a.chatView.SetDocument(req.DocumentID)
	a.chatView.SetTopK(req.TopK)
	a.currentView = messages.ViewChat
	a.pending = a.chatView.Ask(req.Query)
	return a
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tea.SetWindowTitle("NeuroVault"),
	}
	if a.currentView == messages.ViewChat {
		cmds = append(cmds, a.chatView.Init())
	}
	if a.pending != nil {
		cmds = append(cmds, a.pending)
		a.pending = nil
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocognit,gocyclo,funlen // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		// Global quit with ctrl+c
		if msg.String() == "ctrl+c" {
			a.chatView.Stop()
			return a, tea.Quit
		}

		// Forward key messages to active view
		switch a.currentView {
		case messages.ViewMenu:
			a.menuView, cmd = a.menuView.Update(msg)
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
			a.err = a.searchView.Err()
		case messages.ViewChat:
			a.chatView, cmd = a.chatView.Update(msg)
		case messages.ViewTimeline:
			a.timelineView, cmd = a.timelineView.Update(msg)
		case messages.ViewRecord:
			a.recordView, cmd = a.recordView.Update(msg)
		case messages.ViewSettings:
			a.settingsView, cmd = a.settingsView.Update(msg)
		case messages.ViewHelp:
			// Esc from help goes to menu
			if msg.Type == tea.KeyEsc {
				a.currentView = messages.ViewMenu
			}
		}
		return a, cmd

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.ViewChanged:
		a.currentView = msg.View
		// Initialise views when switching to them
		switch msg.View {
		case messages.ViewSearch:
			a.searchView.Reset()
			return a, a.searchView.Init()
		case messages.ViewChat:
			a.chatView.Reset()
			return a, a.chatView.Init()
		case messages.ViewTimeline:
			return a, a.timelineView.Load()
		case messages.ViewSettings:
			a.settingsView.Reset()
			return a, a.settingsView.Init()
		case messages.ViewMenu, messages.ViewHelp, messages.ViewRecord:
			// Other views don't need special initialisation
		}
		return a, nil

	case messages.RecordSelected:
		a.currentView = messages.ViewRecord
		return a, a.recordView.Open(msg.ID, msg.Back)

	case messages.RecordLoaded:
		a.recordView, cmd = a.recordView.Update(msg)
		return a, cmd

	case messages.TimelineLoaded, messages.RecordDeleted:
		a.timelineView, cmd = a.timelineView.Update(msg)
		return a, cmd

	case messages.AskRequested:
		a.chatView.Reset()
		a.chatView.SetDocument(msg.DocumentID)
		a.currentView = messages.ViewChat
		return a, tea.Batch(a.chatView.Init(), a.chatView.Ask(msg.Query))

	case messages.ChatStarted, messages.ChatEventReceived, messages.ChatStreamClosed:
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		// Forward to current view
		switch a.currentView {
		case messages.ViewSearch:
			a.searchView, cmd = a.searchView.Update(msg)
		case messages.ViewChat:
			a.chatView, cmd = a.chatView.Update(msg)
		case messages.ViewTimeline:
			a.timelineView, cmd = a.timelineView.Update(msg)
		case messages.ViewRecord:
			a.recordView, cmd = a.recordView.Update(msg)
		case messages.ViewMenu, messages.ViewHelp, messages.ViewSettings:
			// Other views don't handle error messages
		}
		return a, cmd

	case messages.Quit:
		a.chatView.Stop()
		return a, tea.Quit

	case messages.SettingsLoaded, messages.SettingsSaved:
		// Forward to settings view
		if a.currentView == messages.ViewSettings {
			a.settingsView, cmd = a.settingsView.Update(msg)
			return a, cmd
		}
	}

	// Forward other messages to active view
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewTimeline:
		a.timelineView, cmd = a.timelineView.Update(msg)
	case messages.ViewRecord:
		a.recordView, cmd = a.recordView.Update(msg)
	case messages.ViewSettings:
		a.settingsView, cmd = a.settingsView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't need to handle other messages
	}

	return a, cmd
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewMenu:
		return a.menuView.View()
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewChat:
		return a.chatView.View()
	case messages.ViewTimeline:
		return a.timelineView.View()
	case messages.ViewRecord:
		return a.recordView.View()
	case messages.ViewSettings:
		return a.settingsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return `Help

Navigation:
  esc         Back
  ctrl+c      Quit

Menu:
  j/k, ↑/↓    Navigate options
  enter       Select option
  /  a  t     Search, Ask, Timeline
  q           Quit

Search:
  (type)      Enter search query
  enter       Submit search, then open actions
  n           New search
  a           Ask about the selected document

Ask:
  (type)      Enter a question
  enter       Ask
  esc         Stop the answer, then back

Timeline:
  ←/→, h/l    Newer / older page
  enter       Actions
  a           Ask about the selected record
  d           Delete the selected record

Record:
  ↑/↓, g/G    Scroll
  p           Open the chunk's document
  a           Ask about the document

[esc] back to menu`
}

// Run starts the TUI application. It returns nil when the context ends the program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on the app and all views.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.chatView.SetDimensions(width, height)
	a.timelineView.SetDimensions(width, height)
	a.recordView.SetDimensions(width, height)
	a.settingsView.SetDimensions(width, height)
}
