// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/neurovault/internal/core/domain"
)

// SearchCompleted carries search results back to the model.
// Degraded is set when the results are an unranked listing because the
// query could not be embedded.
type SearchCompleted struct {
	Query    string
	Results  []domain.SearchResult
	Degraded bool
	Err      error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the search input and results view.
	ViewSearch
	// ViewChat asks questions and streams verified answers.
	ViewChat
	// ViewTimeline lists records newest first.
	ViewTimeline
	// ViewRecord shows a single record.
	ViewRecord
	// ViewSettings is the settings configuration view.
	ViewSettings
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewChat:
		return "chat"
	case ViewTimeline:
		return "timeline"
	case ViewRecord:
		return "record"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// RecordSelected asks to open a record. Back is the view esc returns to.
type RecordSelected struct {
	ID   int64
	Back ViewType
}

// RecordLoaded carries a record and its place in the hierarchy.
type RecordLoaded struct {
	Node domain.Node
	Err  error
}

// RecordDeleted signals a record was deleted.
type RecordDeleted struct {
	ID  int64
	Err error
}

// TimelineLoaded carries one page of the timeline.
type TimelineLoaded struct {
	Offset  int
	Records []domain.Record
	Err     error
}

// AskRequested opens the chat view, optionally scoped to one document.
type AskRequested struct {
	DocumentID *int64
	Query      string
}

// ChatStarted carries the event stream of a new answer.
type ChatStarted struct {
	Events <-chan domain.ChatEvent
	Err    error
}

// ChatEventReceived carries one event of an answer stream.
type ChatEventReceived struct {
	Event domain.ChatEvent
}

// ChatStreamClosed signals the answer stream ended.
type ChatStreamClosed struct{}

// SettingsLoaded carries the application settings.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}

// SettingsSaved signals settings were saved.
type SettingsSaved struct {
	Err error
}
