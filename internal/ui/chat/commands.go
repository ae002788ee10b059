// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Slash commands and their asynchronous tea.Cmd implementations.
package chat

import (
	"context"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/export"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/store"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// commandTimeout bounds every slash-command API call.
const commandTimeout = 10 * time.Second

// =============================================================================
// COMMAND PARSING
// =============================================================================

// command is a parsed slash command.
type command struct {
	name string
	args []string
}

// parseCommand parses "/name arg1 arg2". Returns ok=false for plain text.
func parseCommand(input string) (command, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "/") {
		return command{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(fields) == 0 {
		return command{}, false
	}

	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// validAssistants are the assistant modes accepted by /assistant.
var validAssistants = map[string]bool{
	"chat":     true,
	"diagnose": true,
	"signal":   true,
	"prompt":   true,
}

// runCommand dispatches a parsed command. Returns the follow-up command,
// or nil when the command resolved synchronously.
func (m *Model) runCommand(cmd command) tea.Cmd {
	switch cmd.name {
	case "new":
		return m.switchConversationCmd(0)

	case "conversations", "list":
		return m.loadConversationsCmd()

	case "switch":
		if len(cmd.args) != 1 {
			m.toasts.AddWarning("usage: /switch <id>")
			return nil
		}
		id, err := strconv.ParseInt(cmd.args[0], 10, 64)
		if err != nil || id <= 0 {
			m.toasts.AddWarning("conversation id must be a positive number")
			return nil
		}
		return m.switchConversationCmd(id)

	case "delete":
		id := m.controller.ConversationID()
		if len(cmd.args) == 1 {
			parsed, err := strconv.ParseInt(cmd.args[0], 10, 64)
			if err != nil || parsed <= 0 {
				m.toasts.AddWarning("conversation id must be a positive number")
				return nil
			}
			id = parsed
		}
		if id == 0 {
			m.toasts.AddWarning("no conversation to delete")
			return nil
		}
		return m.deleteConversationCmd(id)

	case "resume":
		return m.resume()

	case "assistant", "mode":
		if len(cmd.args) != 1 || !validAssistants[cmd.args[0]] {
			m.toasts.AddWarning("usage: /assistant chat|diagnose|signal|prompt")
			return nil
		}
		m.controller.SetAssistant(cmd.args[0])
		m.statusBar.Assistant = cmd.args[0]
		m.toasts.AddStatus("assistant set to " + cmd.args[0])
		return nil

	case "save":
		return m.savePromptCmd()

	case "prompts":
		return m.loadPromptsCmd()

	case "export":
		format := m.exportFormat
		if len(cmd.args) == 1 {
			format = cmd.args[0]
		}
		return m.exportCmd(format)

	case "help":
		m.showHelp = !m.showHelp
		return nil

	case "quit", "exit":
		return tea.Quit

	default:
		m.toasts.AddWarning("unknown command: /" + cmd.name)
		return nil
	}
}

// =============================================================================
// INTERNAL MESSAGES
// =============================================================================

// conversationsMsg carries the conversation list for the picker.
type conversationsMsg struct {
	items  []model.Conversation
	cached bool
	err    error
}

// switchedMsg reports the outcome of switching conversations.
type switchedMsg struct {
	id  int64
	err error
}

// deletedMsg reports the outcome of deleting a conversation.
type deletedMsg struct {
	id  int64
	err error
}

// exportedMsg reports the outcome of a transcript export.
type exportedMsg struct {
	path string
	err  error
}

// promptSavedMsg reports the outcome of saving a generated prompt.
type promptSavedMsg struct {
	title string
	err   error
}

// promptsMsg carries the saved-prompt library for the overlay.
type promptsMsg struct {
	items []store.SavedPrompt
	err   error
}

// promptDeletedMsg reports the outcome of removing a saved prompt.
type promptDeletedMsg struct {
	id  int64
	err error
}

// =============================================================================
// ASYNC COMMANDS
// =============================================================================

// loadConversationsCmd fetches the conversation list from the platform,
// mirroring it locally on success. When the platform is unreachable the
// local mirror serves a stale copy instead of an empty picker.
func (m *Model) loadConversationsCmd() tea.Cmd {
	ctrl := m.controller
	mirror := m.mirror

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		items, err := ctrl.Conversations(ctx)
		if err == nil {
			if mirror != nil {
				// Mirror failures are not worth interrupting the picker.
				_ = mirror.SyncConversations(ctx, items)
			}
			return conversationsMsg{items: items}
		}

		if mirror != nil {
			cached, cacheErr := mirror.CachedConversations(ctx)
			if cacheErr == nil && len(cached) > 0 {
				return conversationsMsg{items: cached, cached: true}
			}
		}
		return conversationsMsg{err: err}
	}
}

// switchConversationCmd switches to a conversation (0 for a fresh one).
func (m *Model) switchConversationCmd(id int64) tea.Cmd {
	ctrl := m.controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return switchedMsg{id: id, err: ctrl.SwitchConversation(ctx, id)}
	}
}

// deleteConversationCmd deletes a conversation on the platform and from
// the local mirror.
func (m *Model) deleteConversationCmd(id int64) tea.Cmd {
	ctrl := m.controller
	mirror := m.mirror
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := ctrl.DeleteConversation(ctx, id); err != nil {
			return deletedMsg{id: id, err: err}
		}
		if mirror != nil {
			_ = mirror.DeleteConversation(ctx, id)
		}
		return deletedMsg{id: id}
	}
}

// exportCmd writes the current transcript to the export directory.
func (m *Model) exportCmd(format string) tea.Cmd {
	t := m.controller.Transcript()
	if t.Len() == 0 {
		m.toasts.AddWarning("nothing to export")
		return nil
	}

	opts := export.DefaultOptions()
	opts.OutputDir = m.exportDir
	opts.IncludeActivityLog = m.showActivityLog

	var exporter export.Exporter
	switch format {
	case "json":
		exporter = export.NewJSONExporter(opts)
	case "markdown", "md", "":
		exporter = export.NewMarkdownExporter(opts)
	default:
		m.toasts.AddWarning("usage: /export markdown|json")
		return nil
	}

	title := m.conversationTitle
	if title == "" {
		title = "conversation"
	}

	return func() tea.Msg {
		path, err := export.ExportToFile(title, t, exporter, opts)
		return exportedMsg{path: path, err: err}
	}
}

// savePromptCmd stores the most recent generated prompt in the local
// prompt library.
func (m *Model) savePromptCmd() tea.Cmd {
	if m.mirror == nil {
		m.toasts.AddWarning("local storage is disabled")
		return nil
	}

	prompt := latestPrompt(m.controller.Transcript())
	if prompt == nil {
		m.toasts.AddWarning("no generated prompt to save")
		return nil
	}

	mirror := m.mirror
	p := *prompt
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := mirror.SavePrompt(ctx, p)
		return promptSavedMsg{title: p.Title, err: err}
	}
}

// latestPrompt walks the transcript backwards for the newest generated
// prompt payload.
func latestPrompt(t transcript.Transcript) *model.GeneratedPrompt {
	for i := t.Len() - 1; i >= 0; i-- {
		msg := t.Messages[i]
		if msg.Final != nil && msg.Final.Prompt != nil {
			return msg.Final.Prompt
		}
		if msg.Partial.Prompt != nil {
			return msg.Partial.Prompt
		}
	}
	return nil
}

// loadPromptsCmd fetches the saved-prompt library.
func (m *Model) loadPromptsCmd() tea.Cmd {
	if m.mirror == nil {
		m.toasts.AddWarning("local storage is disabled")
		return nil
	}
	mirror := m.mirror
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		items, err := mirror.Prompts(ctx)
		return promptsMsg{items: items, err: err}
	}
}

// deletePromptCmd removes an entry from the prompt library.
func (m *Model) deletePromptCmd(id int64) tea.Cmd {
	mirror := m.mirror
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return promptDeletedMsg{id: id, err: mirror.DeletePrompt(ctx, id)}
	}
}

// resume restarts generation for the last interrupted reply.
func (m *Model) resume() tea.Cmd {
	if err := m.controller.Resume(); err != nil {
		m.toasts.AddWarning(err.Error())
		return nil
	}
	return m.beginStreaming()
}
