// Package settings provides the settings editor view for the TUI.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/neurovault/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driving"
)

var errNoService = errors.New("settings service not available")

// field is one editable row. Rows with choices cycle on enter,
// everything else is edited through the text input.
type field struct {
	group   string
	label   string
	key     string
	secret  bool
	choices func(*domain.AppSettings) []string
	value   func(*domain.AppSettings) string
}

func providerChoices(providers []domain.AIProvider) func(*domain.AppSettings) []string {
	return func(*domain.AppSettings) []string {
		out := make([]string, len(providers))
		for i, p := range providers {
			out[i] = p.String()
		}
		return out
	}
}

func backendChoices(*domain.AppSettings) []string {
	backends := domain.AllVectorBackends()
	out := make([]string, len(backends))
	for i, b := range backends {
		out[i] = b.String()
	}
	return out
}

func boolChoices(*domain.AppSettings) []string { return []string{"true", "false"} }

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	return "********"
}

// fields lists the rows in display order.
var fields = []field{
	{group: "Embedding", label: "Provider", key: "embedding.provider",
		choices: providerChoices(domain.AllEmbeddingProviders()),
		value:   func(s *domain.AppSettings) string { return s.Embedding.Provider.String() }},
	{group: "Embedding", label: "Model", key: "embedding.model",
		value: func(s *domain.AppSettings) string { return s.Embedding.Model }},
	{group: "Embedding", label: "API key", key: "embedding.api_key", secret: true,
		value: func(s *domain.AppSettings) string { return maskKey(s.Embedding.APIKey) }},
	{group: "Embedding", label: "Timeout", key: "embedding.timeout",
		value: func(s *domain.AppSettings) string { return s.Embedding.Timeout.String() }},

	{group: "Language model", label: "Provider", key: "llm.provider",
		choices: providerChoices(domain.AllLLMProviders()),
		value:   func(s *domain.AppSettings) string { return s.LLM.Provider.String() }},
	{group: "Language model", label: "Answer model", key: "llm.model",
		value: func(s *domain.AppSettings) string { return s.LLM.Model }},
	{group: "Language model", label: "Verifier model", key: "llm.verifier_model",
		value: func(s *domain.AppSettings) string { return s.LLM.EffectiveVerifierModel() }},
	{group: "Language model", label: "Vision model", key: "llm.vision_model",
		value: func(s *domain.AppSettings) string { return s.LLM.VisionModel }},
	{group: "Language model", label: "API key", key: "llm.api_key", secret: true,
		value: func(s *domain.AppSettings) string { return maskKey(s.LLM.APIKey) }},

	{group: "Vector index", label: "Backend", key: "vector_index.backend",
		choices: backendChoices,
		value:   func(s *domain.AppSettings) string { return s.VectorIndex.Backend.String() }},
	{group: "Vector index", label: "Dimensions", key: "vector_index.dimensions",
		value: func(s *domain.AppSettings) string { return strconv.Itoa(s.VectorIndex.Dimensions) }},
	{group: "Vector index", label: "Qdrant address", key: "vector_index.qdrant_addr",
		value: func(s *domain.AppSettings) string { return s.VectorIndex.QdrantAddr }},

	{group: "Chat", label: "Evidence snippets", key: "chat.top_k",
		value: func(s *domain.AppSettings) string { return strconv.Itoa(s.Chat.TopK) }},
	{group: "Chat", label: "Answer timeout", key: "chat.answer_timeout",
		value: func(s *domain.AppSettings) string { return s.Chat.AnswerTimeout.String() }},
	{group: "Chat", label: "Verify timeout", key: "chat.verify_timeout",
		value: func(s *domain.AppSettings) string { return s.Chat.VerifyTimeout.String() }},

	{group: "Ingest", label: "Chunk size", key: "ingest.chunk_size",
		value: func(s *domain.AppSettings) string { return strconv.Itoa(s.Ingest.ChunkSize) }},
	{group: "Ingest", label: "Chunk overlap", key: "ingest.chunk_overlap",
		value: func(s *domain.AppSettings) string { return strconv.Itoa(s.Ingest.ChunkOverlap) }},
	{group: "Ingest", label: "Summarise documents", key: "ingest.summarise",
		choices: boolChoices,
		value:   func(s *domain.AppSettings) string { return strconv.FormatBool(s.Ingest.Summarise) }},

	{group: "Analysis", label: "Concurrent analyses", key: "analysis.max_concurrent",
		value: func(s *domain.AppSettings) string { return strconv.Itoa(s.Analysis.MaxConcurrent) }},
}

// View is the settings editor.
type View struct {
	styles          *styles.Styles
	settingsService driving.SettingsService

	settings *domain.AppSettings
	err      error

	selected int
	editing  bool
	input    textinput.Model

	width  int
	height int
	ready  bool
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	input := textinput.New()
	input.CharLimit = 256

	return &View{
		styles:          s,
		settingsService: settingsService,
		input:           input,
	}
}

// Init loads the current settings.
func (v *View) Init() tea.Cmd {
	return v.loadSettings()
}

func (v *View) loadSettings() tea.Cmd {
	return func() tea.Msg {
		if v.settingsService == nil {
			return messages.SettingsLoaded{Err: errNoService}
		}
		settings, err := v.settingsService.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}
}

// set stores one key and reports the outcome as SettingsSaved.
func (v *View) set(key, value string) tea.Cmd {
	return func() tea.Msg {
		if v.settingsService == nil {
			return messages.SettingsSaved{Err: errNoService}
		}
		return messages.SettingsSaved{Err: v.settingsService.Set(key, value)}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SettingsLoaded:
		v.err = msg.Err
		if msg.Err == nil {
			v.settings = msg.Settings
		}
		return v, nil

	case messages.SettingsSaved:
		v.err = msg.Err
		if msg.Err != nil {
			return v, nil
		}
		return v, v.loadSettings()

	case tea.KeyMsg:
		if v.editing {
			return v.handleEditKeys(msg)
		}
		return v.handleListKeys(msg)
	}

	return v, nil
}

func (v *View) handleListKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "down", "j":
		if v.selected < len(fields)-1 {
			v.selected++
		}
	case "enter":
		if v.settings == nil {
			return v, nil
		}
		f := fields[v.selected]
		if f.choices != nil {
			return v, v.set(f.key, nextChoice(f.choices(v.settings), f.value(v.settings)))
		}
		return v, v.startEditing(f)
	}
	return v, nil
}

func (v *View) handleEditKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		v.stopEditing()
		return v, nil
	case "enter":
		key, value := fields[v.selected].key, v.input.Value()
		v.stopEditing()
		return v, v.set(key, value)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) startEditing(f field) tea.Cmd {
	v.editing = true
	v.input.Reset()
	if f.secret {
		v.input.EchoMode = textinput.EchoPassword
		v.input.Placeholder = "Enter API key"
	} else {
		v.input.EchoMode = textinput.EchoNormal
		v.input.Placeholder = ""
		v.input.SetValue(f.value(v.settings))
	}
	return v.input.Focus()
}

func (v *View) stopEditing() {
	v.editing = false
	v.input.Reset()
	v.input.Blur()
}

// nextChoice returns the option after current, wrapping around.
func nextChoice(choices []string, current string) string {
	if len(choices) == 0 {
		return current
	}
	for i, c := range choices {
		if c == current {
			return choices[(i+1)%len(choices)]
		}
	}
	return choices[0]
}

// View renders the settings view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
		b.WriteString("\n\n")
	}

	if v.settings == nil {
		b.WriteString(v.styles.Muted.Render("Loading settings..."))
		return b.String()
	}

	group := ""
	for i, f := range fields {
		if f.group != group {
			if group != "" {
				b.WriteString("\n")
			}
			group = f.group
			b.WriteString(v.styles.Subtitle.Render(group))
			b.WriteString("\n")
		}

		line := fmt.Sprintf("%-22s %s", f.label, f.value(v.settings))
		if i == v.selected {
			b.WriteString(v.styles.Selected.Render("> " + line))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + line))
		}
		b.WriteString("\n")

		if i == v.selected && v.editing {
			b.WriteString("    ")
			b.WriteString(v.input.View())
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderStatus() string {
	if v.settingsService == nil {
		return ""
	}
	if err := v.settingsService.Validate(); err != nil {
		return v.styles.Warning.Render("Warning: " + err.Error())
	}
	return v.styles.Success.Render("Configuration is valid")
}

func (v *View) renderHelp() string {
	if v.editing {
		return v.styles.Help.Render("[enter] save  [esc] cancel")
	}
	return v.styles.Help.Render("[j/k] navigate  [enter] edit or cycle  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Reset returns the view to the top of the list.
func (v *View) Reset() {
	v.selected = 0
	v.err = nil
	v.stopEditing()
}
