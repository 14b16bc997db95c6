// Package search provides the main search view for the TUI.
package search

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// resultLimit is the number of results requested per search.
const resultLimit = 20

// Result actions.
const (
	actionShow   = "Show record"
	actionAsk    = "Ask about this document"
	actionCancel = "Cancel"
)

// ActionMenu represents a simple action selection overlay.
type ActionMenu struct {
	actions  []string
	selected int
	visible  bool
	result   *domain.SearchResult
}

// View represents the search view with input, results list, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	ctx           context.Context

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = input mode (typing), false = results mode (navigating)
	degraded   bool
	actionMenu *ActionMenu

	// media narrows results to one media type; empty means all.
	media     domain.MediaType
	lastQuery string
	searched  bool
}

// mediaFilters is the tab cycle order of the media filter.
var mediaFilters = []domain.MediaType{
	"",
	domain.MediaTypeText,
	domain.MediaTypeDocument,
	domain.MediaTypeImage,
	domain.MediaTypeVoice,
	domain.MediaTypeLink,
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewSearchInput(s),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
		ready:         false,
		focusInput:    true, // Start in input mode
		actionMenu:    nil,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	// Forward to input component
	var inputCmd tea.Cmd
	v.input, inputCmd = v.input.Update(msg)
	if inputCmd != nil {
		cmds = append(cmds, inputCmd)
	}

	// Forward to list component
	var listCmd tea.Cmd
	v.list, listCmd = v.list.Update(msg)
	if listCmd != nil {
		cmds = append(cmds, listCmd)
	}

	return v, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	// If action menu is visible, handle its keys
	if v.actionMenu != nil && v.actionMenu.visible {
		return v.handleActionMenuKey(msg)
	}

	// Esc always signals to go back to menu
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	// Tab cycles the media filter and reruns the last search.
	if msg.Type == tea.KeyTab {
		v.media = nextMedia(v.media)
		if !v.searched {
			return v, nil
		}
		v.statusbar.SetState(status.StateSearching)
		return v, v.performSearch(v.lastQuery)
	}

	// Enter in input mode submits search. An empty query browses the
	// newest records instead.
	if msg.Type == tea.KeyEnter && v.focusInput {
		query := strings.TrimSpace(v.input.Value())
		v.lastQuery = query
		v.searched = true
		v.statusbar.SetState(status.StateSearching)
		v.focusInput = false // Move to results mode after search
		v.input.Blur()
		return v, v.performSearch(query)
	}

	// Input mode: all keys go to input
	if v.focusInput {
		v.input, _ = v.input.Update(msg)
		return v, nil
	}

	// Results mode: handle Enter to open action menu
	if msg.Type == tea.KeyEnter {
		result := v.list.SelectedResult()
		if result != nil {
			actions := []string{actionShow}
			if documentID(result) != nil {
				actions = append(actions, actionAsk)
			}
			v.actionMenu = &ActionMenu{
				actions:  append(actions, actionCancel),
				selected: 0,
				visible:  true,
				result:   result,
			}
		}
		return v, nil
	}

	// Results mode: handle navigation
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyUp:
		v.list.MoveUp()
		return v, nil
	case tea.KeyDown:
		v.list.MoveDown()
		return v, nil
	}

	switch msg.String() {
	case "k":
		v.list.MoveUp()
		return v, nil
	case "j":
		v.list.MoveDown()
		return v, nil
	case "n":
		// New search: clear input and focus it
		v.focusInput = true
		v.input.Focus()
		v.input.SetValue("")
		return v, nil
	case "a":
		return v.executeAction(actionAsk, v.list.SelectedResult())
	}

	return v, nil
}

// handleActionMenuKey processes keyboard input when action menu is visible.
func (v *View) handleActionMenuKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyUp:
		if v.actionMenu.selected > 0 {
			v.actionMenu.selected--
		}
		return v, nil
	case tea.KeyDown:
		if v.actionMenu.selected < len(v.actionMenu.actions)-1 {
			v.actionMenu.selected++
		}
		return v, nil
	case tea.KeyEnter:
		action := v.actionMenu.actions[v.actionMenu.selected]
		result := v.actionMenu.result
		v.actionMenu = nil // Close menu
		return v.executeAction(action, result)
	case tea.KeyEsc:
		v.actionMenu = nil // Close menu
		return v, nil
	default:
		// Handle other keys
	}

	// Handle vim-style navigation in action menu
	switch msg.String() {
	case "k":
		if v.actionMenu.selected > 0 {
			v.actionMenu.selected--
		}
		return v, nil
	case "j":
		if v.actionMenu.selected < len(v.actionMenu.actions)-1 {
			v.actionMenu.selected++
		}
		return v, nil
	}

	return v, nil
}

// executeAction performs the selected action on a search result.
func (v *View) executeAction(action string, result *domain.SearchResult) (*View, tea.Cmd) {
	if result == nil {
		return v, nil
	}

	switch action {
	case actionShow:
		id := result.Record.ID
		return v, func() tea.Msg {
			return messages.RecordSelected{ID: id, Back: messages.ViewSearch}
		}
	case actionAsk:
		// Outside a document the question goes to the whole vault.
		req := messages.AskRequested{DocumentID: documentID(result)}
		return v, func() tea.Msg { return req }
	case actionCancel:
		// Do nothing, menu is already closed
	}

	return v, nil
}

// documentID returns the document a result belongs to, or nil when it is
// not part of an ingested document.
func documentID(result *domain.SearchResult) *int64 {
	rec := &result.Record
	if rec.MediaType != domain.MediaTypeDocument {
		return nil
	}
	if rec.ParentID != nil {
		id := *rec.ParentID
		return &id
	}
	id := rec.ID
	return &id
}

// performSearch runs the query. When it cannot be embedded the view falls
// back to an unranked listing and says so.
func (v *View) performSearch(query string) tea.Cmd {
	ctx, search, media := v.ctx, v.searchService, v.media
	return func() tea.Msg {
		if search == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}

		opts := domain.SearchOptions{Limit: resultLimit, MediaType: media}
		results, err := search.Search(ctx, query, opts)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			results, err = search.Search(ctx, "", opts)
			return messages.SearchCompleted{Query: query, Results: results, Degraded: err == nil, Err: err}
		}
		return messages.SearchCompleted{Query: query, Results: results, Err: err}
	}
}

func nextMedia(current domain.MediaType) domain.MediaType {
	for i, m := range mediaFilters {
		if m == current {
			return mediaFilters[(i+1)%len(mediaFilters)]
		}
	}
	return mediaFilters[0]
}

// handleSearchCompleted processes search results.
func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.err = nil
	v.degraded = msg.Degraded
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Results))
	v.statusbar.SetUnranked(msg.Degraded)

	// Switch to results mode after successful search
	v.focusInput = false
	v.input.Blur()
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)

	// Header
	header := v.styles.Title.Render("NeuroVault")
	sections = append(sections, header, "")

	// Search input
	inputView := v.input.View()
	sections = append(sections, inputView, "")

	// Error display
	if v.err != nil {
		errView := v.styles.Error.Render("Error: " + v.err.Error())
		sections = append(sections, errView, "")
	}
	filter := "all types"
	if v.media != "" {
		filter = string(v.media)
	}
	sections = append(sections, v.styles.Muted.Render("Showing "+filter+"  [tab] change"), "")

	switch {
	case v.degraded:
		notice := v.styles.Warning.Render("Embeddings unavailable: showing recent records, unranked.")
		sections = append(sections, notice, "")
	case v.searched && v.lastQuery == "" && v.err == nil:
		sections = append(sections, v.styles.Muted.Render("Recent records, newest first."), "")
	}

	// Results list
	listView := v.list.View()
	sections = append(sections, listView)

	// Action menu overlay (if visible)
	if v.actionMenu != nil && v.actionMenu.visible {
		sections = append(sections, "")
		menuView := v.renderActionMenu()
		sections = append(sections, menuView)
	}

	// Status bar at bottom
	sections = append(sections, "")
	statusView := v.statusbar.View()
	sections = append(sections, statusView)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderActionMenu renders the action menu overlay.
func (v *View) renderActionMenu() string {
	if v.actionMenu == nil {
		return ""
	}

	lines := make([]string, 0, len(v.actionMenu.actions))
	for i, action := range v.actionMenu.actions {
		indicator := "  "
		if i == v.actionMenu.selected {
			indicator = "> "
		}

		var line string
		if i == v.actionMenu.selected {
			line = v.styles.Selected.Render(indicator + action)
		} else {
			line = v.styles.Normal.Render(indicator + action)
		}
		lines = append(lines, line)
	}

	content := strings.Join(lines, "\n")

	// Wrap in a bordered box
	menuStyle := v.styles.Border.
		Padding(0, 1)

	return menuStyle.Render(content)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Allocate space to components
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10) // Reserve space for header, input, status
	v.statusbar.SetWidth(width)
}

// Width returns the current width.
func (v *View) Width() int {
	return v.width
}

// Height returns the current height.
func (v *View) Height() int {
	return v.height
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current search query.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the search query.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current search results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// SelectedResult returns the currently selected result.
func (v *View) SelectedResult() *domain.SearchResult {
	return v.list.SelectedResult()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// ClearError clears the current error.
func (v *View) ClearError() {
	v.err = nil
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

// Reset resets the view to initial input mode.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.err = nil
	v.degraded = false
	v.lastQuery = ""
	v.searched = false
	v.statusbar.Clear()
}

// MediaFilter returns the active media type filter, empty for all.
func (v *View) MediaFilter() domain.MediaType {
	return v.media
}

// Degraded reports whether the shown results are an unranked fallback.
func (v *View) Degraded() bool {
	return v.degraded
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
