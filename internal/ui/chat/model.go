// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/store"
	"github.com/perpdeck/perpdeck-tui/internal/ui/components"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a streaming response
)

// RoundRecorder receives one record per completed exchange. Satisfied by
// *telemetry.Tracker.
type RoundRecorder interface {
	RecordRound(ctx context.Context, rec store.RoundRecord) error
}

// conversationPicker is the transient state of the conversation list
// overlay.
type conversationPicker struct {
	items  []model.Conversation
	index  int
	cached bool // items came from the local mirror, not the platform
}

// promptPicker is the transient state of the saved-prompt library
// overlay.
type promptPicker struct {
	items []store.SavedPrompt
	index int
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme  *styles.Theme
	keyMap KeyMap

	width  int
	height int
	ready  bool

	// Session
	controller *session.Controller
	recorder   RoundRecorder // optional
	mirror     *store.Store  // optional conversation cache

	// UI components
	viewport  viewport.Model
	input     textinput.Model
	spinner   components.Spinner
	statusBar *components.StatusBar
	toasts    *components.ToastManager
	limiter   *RenderLimiter

	// Markdown rendering
	md            *glamour.TermRenderer
	markdownWidth int

	// Config-driven display options
	showActivityLog bool
	exportDir       string
	exportFormat    string
	exchange        string
	testnet         bool

	// Streaming state
	state       State
	streamStart time.Time
	frames      int

	// Overlays
	showHelp  bool
	picker    *conversationPicker
	promptLib *promptPicker

	conversationTitle string
}

// New creates the chat view bound to a session controller.
func New(cfg *config.Config, ctrl *session.Controller, theme *styles.Theme) *Model {
	input := textinput.New()
	input.Placeholder = "Ask about your positions, or /help for commands"
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.TextStyle = theme.InputText
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 4000
	input.Focus()

	sb := components.NewStatusBar(theme)
	sb.Assistant = ctrl.Assistant()
	sb.Exchange = cfg.Exchange.Name
	sb.Testnet = cfg.Exchange.Testnet

	exportDir, err := cfg.ExportDir()
	if err != nil {
		exportDir = "."
	}

	m := &Model{
		theme:           theme,
		keyMap:          DefaultKeyMap(),
		controller:      ctrl,
		input:           input,
		spinner:         components.NewSpinner(),
		statusBar:       sb,
		toasts:          components.NewToastManager(),
		limiter:         NewRenderLimiter(),
		markdownWidth:   cfg.UI.MarkdownWidth,
		showActivityLog: cfg.UI.ShowActivityLog,
		exportDir:       exportDir,
		exportFormat:    cfg.Export.Format,
		exchange:        cfg.Exchange.Name,
		testnet:         cfg.Exchange.Testnet,
	}

	m.md = newMarkdownRenderer(m.wrapWidth())
	return m
}

// SetRecorder wires the telemetry tracker. Optional.
func (m *Model) SetRecorder(r RoundRecorder) {
	m.recorder = r
}

// SetStore wires the local conversation mirror used as an offline
// fallback for the conversation list. Optional.
func (m *Model) SetStore(s *store.Store) {
	m.mirror = s
}

// Init starts the event pump and the cursor blink.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.controller.NextEvent(),
		components.ToastTickCmd(),
	)
}

// wrapWidth returns the effective markdown wrap width: the configured
// width, clamped to the terminal.
func (m *Model) wrapWidth() int {
	w := m.markdownWidth
	if w <= 0 {
		w = 100
	}
	if m.width > 0 && w > m.width-6 {
		w = m.width - 6
	}
	if w < 20 {
		w = 20
	}
	return w
}

// newMarkdownRenderer builds a glamour renderer for the given wrap width.
// Returns nil if glamour cannot initialize; rendering falls back to the
// plain code-block parser.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
