// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/store"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
	"github.com/perpdeck/perpdeck-tui/internal/ui/components"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// Fixed chrome heights around the transcript viewport.
const (
	headerHeight = 3
	inputHeight  = 3
	statusHeight = 1
)

// Update is the Bubble Tea update loop for the chat view.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.StreamUpdateMsg:
		return m, m.handleStreamUpdate(msg)

	case session.StreamDoneMsg:
		return m, m.handleStreamDone(msg)

	case session.StreamFailedMsg:
		return m, m.handleStreamFailed(msg)

	case RenderTickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		if m.limiter.ShouldRender() {
			m.refreshViewport(true)
		}
		m.statusBar.SetStreaming(m.frames, time.Since(m.streamStart))
		return m, renderTickCmd()

	case components.ToastTickMsg:
		m.toasts.Tick()
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		return m, m.spinner.Update(msg)

	case conversationsMsg:
		return m, m.handleConversations(msg)

	case switchedMsg:
		return m, m.handleSwitched(msg)

	case deletedMsg:
		return m, m.handleDeleted(msg)

	case exportedMsg:
		if msg.err != nil {
			m.toasts.AddError("export failed: " + msg.err.Error())
		} else {
			m.toasts.AddSuccess("exported to " + msg.path)
		}
		return m, nil

	case promptSavedMsg:
		if msg.err != nil {
			m.toasts.AddError("saving prompt failed: " + msg.err.Error())
		} else {
			m.toasts.AddSuccess("saved prompt: " + msg.title)
		}
		return m, nil

	case promptsMsg:
		if msg.err != nil {
			m.toasts.AddError("loading prompts failed: " + msg.err.Error())
			return m, nil
		}
		if len(msg.items) == 0 {
			m.toasts.AddStatus("prompt library is empty; /save stores the last generated prompt")
			return m, nil
		}
		m.promptLib = &promptPicker{items: msg.items}
		return m, nil

	case promptDeletedMsg:
		if msg.err != nil {
			m.toasts.AddError("deleting prompt failed: " + msg.err.Error())
			return m, nil
		}
		if m.promptLib != nil {
			items := m.promptLib.items[:0]
			for _, p := range m.promptLib.items {
				if p.ID != msg.id {
					items = append(items, p)
				}
			}
			m.promptLib.items = items
			if m.promptLib.index >= len(items) && m.promptLib.index > 0 {
				m.promptLib.index--
			}
			if len(items) == 0 {
				m.promptLib = nil
			}
		}
		return m, nil
	}

	// Everything else feeds the input component (paste, blink).
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// RESIZE
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) tea.Cmd {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.statusBar.Width = msg.Width

	vpHeight := msg.Height - headerHeight - inputHeight - statusHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	// Word wrap tracks the terminal, so rebuild the renderer.
	m.md = newMarkdownRenderer(m.wrapWidth())
	m.refreshViewport(true)
	return nil
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func (m *Model) handleStreamUpdate(msg session.StreamUpdateMsg) tea.Cmd {
	m.frames++
	m.limiter.MarkDirty()

	// Advisory error frames surface as warnings; the stream continues.
	if msg.Note.Level == transcript.NoteError {
		m.toasts.AddWarning(msg.Note.Text)
	}

	// Show in-progress status text under the spinner.
	if streaming := m.controller.Transcript().Streaming(); streaming != nil {
		m.spinner.SetDetail(util.TruncateWidth(streaming.StatusText, m.wrapWidth()))
	}

	if m.limiter.ShouldRender() {
		m.refreshViewport(true)
	}
	return m.controller.NextEvent()
}

func (m *Model) handleStreamDone(msg session.StreamDoneMsg) tea.Cmd {
	m.state = StateReady
	m.spinner.Stop()
	m.limiter.ForceRender()
	m.refreshViewport(true)

	if msg.Interrupted {
		m.statusBar.Status = components.StatusInterrupted
		m.toasts.AddWarning("generation stopped; C-r to resume")
	} else {
		m.statusBar.Status = components.StatusReady
	}

	cmds := []tea.Cmd{m.controller.NextEvent()}
	if rec := m.recordRoundCmd(msg); rec != nil {
		cmds = append(cmds, rec)
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleStreamFailed(msg session.StreamFailedMsg) tea.Cmd {
	m.state = StateReady
	m.spinner.Stop()
	m.statusBar.Status = components.StatusError
	m.refreshViewport(true)

	m.toasts.AddError(msg.Err.Error())
	if msg.Reloaded {
		m.toasts.AddStatus("transcript reloaded from the platform")
	} else {
		m.toasts.AddStatus("message discarded; press up to retry")
	}
	return m.controller.NextEvent()
}

// recordRoundCmd persists telemetry for a completed exchange.
func (m *Model) recordRoundCmd(msg session.StreamDoneMsg) tea.Cmd {
	if m.recorder == nil {
		return nil
	}

	rec := store.RoundRecord{
		ConversationID: msg.ConversationID,
		Assistant:      m.controller.Assistant(),
		Frames:         msg.Frames,
		Dropped:        msg.Dropped,
		LogEntries:     msg.LogEntries,
		Interrupted:    msg.Interrupted,
		FirstEvent:     msg.FirstEvent,
		Duration:       msg.Elapsed,
		StartedAt:      time.Now().Add(-msg.Elapsed),
	}
	recorder := m.recorder

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		// Telemetry is best-effort; a failed write never surfaces.
		_ = recorder.RecordRound(ctx, rec)
		return nil
	}
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

func (m *Model) handleConversations(msg conversationsMsg) tea.Cmd {
	if msg.err != nil {
		m.toasts.AddError("could not load conversations: " + msg.err.Error())
		return nil
	}
	if len(msg.items) == 0 {
		m.toasts.AddStatus("no saved conversations")
		return nil
	}

	m.picker = &conversationPicker{items: msg.items, cached: msg.cached}
	if msg.cached {
		m.toasts.AddWarning("platform unreachable; showing cached list")
	}
	return nil
}

func (m *Model) handleSwitched(msg switchedMsg) tea.Cmd {
	if msg.err != nil {
		m.toasts.AddError("switch failed: " + msg.err.Error())
		return nil
	}

	m.conversationTitle = ""
	if m.picker != nil {
		for _, c := range m.picker.items {
			if c.ID == msg.id {
				m.conversationTitle = c.Title
			}
		}
	}
	m.picker = nil
	m.statusBar.Conversation = m.conversationTitle
	m.statusBar.Status = components.StatusReady
	m.refreshViewport(true)

	if msg.id == 0 {
		m.toasts.AddStatus("started a new conversation")
	}
	return nil
}

func (m *Model) handleDeleted(msg deletedMsg) tea.Cmd {
	if msg.err != nil {
		m.toasts.AddError("delete failed: " + msg.err.Error())
		return nil
	}

	if m.picker != nil {
		items := m.picker.items[:0]
		for _, c := range m.picker.items {
			if c.ID != msg.id {
				items = append(items, c)
			}
		}
		m.picker.items = items
		if m.picker.index >= len(items) && m.picker.index > 0 {
			m.picker.index--
		}
		if len(items) == 0 {
			m.picker = nil
		}
	}

	if m.controller.ConversationID() == 0 {
		m.conversationTitle = ""
		m.statusBar.Conversation = ""
	}
	m.refreshViewport(true)
	m.toasts.AddSuccess("conversation deleted")
	return nil
}

// =============================================================================
// KEYBOARD
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Overlays swallow keys first.
	if m.picker != nil {
		return m, m.handlePickerKey(msg)
	}
	if m.promptLib != nil {
		return m, m.handlePromptKey(msg)
	}
	if m.showHelp {
		if key.Matches(msg, m.keyMap.Help) || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		if m.state == StateStreaming {
			m.controller.Interrupt()
			return m, nil
		}
		m.input.Reset()
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keyMap.Resume):
		return m, m.resume()

	case key.Matches(msg, m.keyMap.Conversations):
		return m, m.loadConversationsCmd()

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keyMap.Up), key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown),
		key.Matches(msg, m.keyMap.Home), key.Matches(msg, m.keyMap.End):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	p := m.picker
	switch msg.String() {
	case "up", "k":
		if p.index > 0 {
			p.index--
		}
	case "down", "j":
		if p.index < len(p.items)-1 {
			p.index++
		}
	case "enter":
		id := p.items[p.index].ID
		return m.switchConversationCmd(id)
	case "d":
		return m.deleteConversationCmd(p.items[p.index].ID)
	case "esc", "q":
		m.picker = nil
	}
	return nil
}

// handlePromptKey drives the saved-prompt overlay. Enter prefills the
// input with the selected prompt body so it can be edited before
// sending.
func (m *Model) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	p := m.promptLib
	switch msg.String() {
	case "up", "k":
		if p.index > 0 {
			p.index--
		}
	case "down", "j":
		if p.index < len(p.items)-1 {
			p.index++
		}
	case "enter":
		m.input.SetValue(p.items[p.index].Body)
		m.input.CursorEnd()
		m.promptLib = nil
	case "d":
		return m.deletePromptCmd(p.items[p.index].ID)
	case "esc", "q":
		m.promptLib = nil
	}
	return nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// submit sends the input line: slash commands run locally, anything else
// starts an exchange.
func (m *Model) submit() tea.Cmd {
	value := m.input.Value()

	if cmd, ok := parseCommand(value); ok {
		m.input.Reset()
		return m.runCommand(cmd)
	}

	err := m.controller.Send(value)
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return nil
	case errors.Is(err, session.ErrBusy):
		m.toasts.AddWarning("a response is still streaming")
		return nil
	case err != nil:
		m.toasts.AddError(err.Error())
		return nil
	}

	m.input.Reset()
	return m.beginStreaming()
}

// beginStreaming flips the view into streaming state. The optimistic user
// message is already in the transcript, so redraw immediately.
func (m *Model) beginStreaming() tea.Cmd {
	m.state = StateStreaming
	m.frames = 0
	m.streamStart = time.Now()
	m.limiter.Reset()
	m.statusBar.SetStreaming(0, 0)
	m.refreshViewport(true)

	return tea.Batch(m.spinner.Start(), renderTickCmd())
}

// refreshViewport rebuilds the transcript content.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
