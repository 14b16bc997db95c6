// Package chat provides the question and verified answer view for the TUI.
//
// An answer arrives as a stream of domain.ChatEvent values. The view pulls
// one event per command so the Bubble Tea loop never blocks, and renders
// the verdict once the stream reports it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

// ErrNoChatService indicates that no chat service was provided.
var ErrNoChatService = errors.New("chat service not available")

// verdictWait is how long the stream may stay quiet after the last token
// before the status bar reports that the answer is being verified.
const verdictWait = 400 * time.Millisecond

// awaitingVerdict is sent when tokens have stopped but no verdict arrived yet.
type awaitingVerdict struct {
	events <-chan domain.ChatEvent
}

// View asks questions and shows streamed, verified answers.
type View struct {
	styles      *styles.Styles
	keymap      *keymap.KeyMap
	input       *input.Prompt
	statusbar   *status.Bar
	chatService driving.ChatService
	ctx         context.Context

	documentID *int64
	topK       int
	question   string
	answer     strings.Builder
	noInfo     string
	verdict    *domain.Verdict
	events     <-chan domain.ChatEvent
	cancel     context.CancelFunc
	streaming  bool
	err        error

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, chatService driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:      s,
		keymap:      km,
		input:       input.NewQuestionInput(s),
		statusbar:   status.NewBar(s, km),
		chatService: chatService,
		ctx:         context.Background(),
		width:       80,
		height:      24,
	}
}

// WithContext sets the parent context for answers.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// SetDocument scopes later questions to a document, or to the whole vault when nil.
func (v *View) SetDocument(id *int64) {
	v.documentID = id
}

// SetTopK sets how many evidence snippets answers use. Zero means the service default.
func (v *View) SetTopK(k int) {
	v.topK = k
}

// DocumentID returns the document questions are scoped to.
func (v *View) DocumentID() *int64 {
	return v.documentID
}

// Ask starts answering a question, abandoning any answer in progress.
func (v *View) Ask(query string) tea.Cmd {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	v.Stop()

	v.question = query
	v.answer.Reset()
	v.noInfo = ""
	v.verdict = nil
	v.err = nil
	v.streaming = true
	v.input.SetValue("")
	v.statusbar.SetState(status.StateAnswering)
	v.statusbar.SetMessage("")

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancel = cancel
	chat := v.chatService
	req := domain.ChatRequest{Query: query, DocumentID: v.documentID, TopK: v.topK}
	return func() tea.Msg {
		if chat == nil {
			return messages.ChatStarted{Err: ErrNoChatService}
		}
		events, err := chat.Ask(ctx, req)
		return messages.ChatStarted{Events: events, Err: err}
	}
}

// Stop cancels the answer in progress, if any.
func (v *View) Stop() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.events = nil
	v.streaming = false
}

// next waits for the next event on the stream. Once tokens have arrived a
// quiet stream yields awaitingVerdict instead.
func (v *View) next() tea.Cmd {
	events := v.events
	if events == nil {
		return nil
	}
	hint := v.answer.Len() > 0 && v.statusbar.State() == status.StateAnswering
	return func() tea.Msg {
		var timeout <-chan time.Time
		if hint {
			timer := time.NewTimer(verdictWait)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case ev, ok := <-events:
			if !ok {
				return messages.ChatStreamClosed{}
			}
			return messages.ChatEventReceived{Event: ev}
		case <-timeout:
			return awaitingVerdict{events: events}
		}
	}
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ChatStarted:
		if msg.Err != nil {
			v.fail(msg.Err)
			return v, nil
		}
		v.events = msg.Events
		return v, v.next()

	case messages.ChatEventReceived:
		v.handleEvent(msg.Event)
		return v, v.next()

	case awaitingVerdict:
		// Ignore hints from an abandoned stream.
		if msg.events != v.events {
			return v, nil
		}
		v.statusbar.SetState(status.StateVerifying)
		return v, v.next()

	case messages.ChatStreamClosed:
		v.finish()
		return v, nil

	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleEvent(ev domain.ChatEvent) {
	switch ev.Type {
	case domain.ChatEventToken:
		v.answer.WriteString(ev.Token)
	case domain.ChatEventNoInformation:
		v.noInfo = ev.Message
	case domain.ChatEventVerification:
		v.verdict = ev.Verdict
	}
}

func (v *View) finish() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.events = nil
	v.streaming = false
	v.statusbar.SetState(status.StateReady)
	switch {
	case v.verdict == nil:
		v.statusbar.SetMessage("Answer not verified")
	case v.verdict.Valid:
		v.statusbar.SetMessage("Answer verified")
	default:
		v.statusbar.SetMessage("Answer rejected")
	}
}

func (v *View) fail(err error) {
	v.Stop()
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		// First esc stops a running answer, the next leaves the view.
		if v.streaming {
			v.Stop()
			v.statusbar.SetState(status.StateReady)
			v.statusbar.SetMessage("Answer cancelled")
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case tea.KeyEnter:
		if v.streaming {
			return v, nil
		}
		return v, v.Ask(v.input.Value())
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	contentWidth := max(v.width-4, 20)
	sections := make([]string, 0, 12)

	title := "Ask NeuroVault"
	if v.documentID != nil {
		title = fmt.Sprintf("Ask NeuroVault - document #%d", *v.documentID)
	}
	sections = append(sections, v.styles.Title.Render(title), "", v.input.View(), "")

	if v.question != "" {
		sections = append(sections, v.styles.Subtitle.Render("Q: "+v.question), "")
	}

	switch {
	case v.err != nil:
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	case v.noInfo != "":
		sections = append(sections, v.styles.Muted.Width(contentWidth).Render(v.noInfo))
	case v.answer.Len() > 0:
		sections = append(sections, v.styles.Answer.Width(contentWidth).Render(v.answer.String()))
	case v.streaming:
		sections = append(sections, v.styles.Muted.Render("Thinking..."))
	}

	if line := v.renderVerdict(); line != "" {
		sections = append(sections, "", lipgloss.NewStyle().Width(contentWidth).Render(line))
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderVerdict formats the verification result.
func (v *View) renderVerdict() string {
	if v.verdict == nil {
		return ""
	}
	if v.verdict.Valid {
		return v.styles.Verified.Render("✓ Verified: " + v.verdict.Reason)
	}
	line := v.styles.Rejected.Render("✗ Not verified: " + v.verdict.Reason)
	if v.verdict.Correction != nil && *v.verdict.Correction != "" {
		line += "\n" + v.styles.Normal.Render("Correction: "+*v.verdict.Correction)
	}
	return line
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Question returns the last question asked.
func (v *View) Question() string {
	return v.question
}

// Answer returns the answer text received so far.
func (v *View) Answer() string {
	return v.answer.String()
}

// NoInformation returns the no-information message, if the vault had no evidence.
func (v *View) NoInformation() string {
	return v.noInfo
}

// Verdict returns the verification result, once received.
func (v *View) Verdict() *domain.Verdict {
	return v.verdict
}

// Streaming reports whether an answer is in progress.
func (v *View) Streaming() bool {
	return v.streaming
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Reset clears the conversation and the document scope.
func (v *View) Reset() {
	v.Stop()
	v.documentID = nil
	v.topK = 0
	v.question = ""
	v.answer.Reset()
	v.noInfo = ""
	v.verdict = nil
	v.err = nil
	v.input.SetValue("")
	v.input.Focus()
	v.statusbar.Clear()
}
