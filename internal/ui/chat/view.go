// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/ui/components"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// View renders the chat view.
func (m *Model) View() string {
	if !m.ready {
		return "starting perpdeck..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch {
	case m.picker != nil:
		b.WriteString(m.renderPicker())
	case m.promptLib != nil:
		b.WriteString(m.renderPromptLibrary())
	case m.showHelp:
		b.WriteString(m.renderHelp())
	default:
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	if m.spinner.Active() {
		b.WriteString(m.spinner.View(m.theme))
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar.Render())

	if m.toasts.HasToasts() {
		b.WriteString("\n")
		b.WriteString(m.toasts.RenderToasts(m.theme, m.width))
	}

	return b.String()
}

// =============================================================================
// HEADER
// =============================================================================

func (m *Model) renderHeader() string {
	title := m.theme.HeaderBrand.Render("perpdeck")
	if m.conversationTitle != "" {
		title += m.theme.HeaderSubtitle.Render(" - " + util.TruncateWidth(m.conversationTitle, 48))
	}
	return m.theme.Header.Width(m.width - 2).Render(title)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the whole conversation for the viewport.
func (m *Model) renderTranscript() string {
	t := m.controller.Transcript()
	if t.Len() == 0 {
		return m.renderEmptyState()
	}

	var sections []string
	for i, msg := range t.Messages {
		sections = append(sections, m.renderMessage(msg, i == t.Len()-1))
	}
	return strings.Join(sections, "\n\n")
}

func (m *Model) renderMessage(msg *model.Message, last bool) string {
	if msg.Role == model.RoleUser {
		return m.renderUserMessage(msg)
	}
	return m.renderAssistantMessage(msg, last)
}

func (m *Model) renderUserMessage(msg *model.Message) string {
	label := m.theme.StatsLabel.Render(
		msg.Role.DisplayName() + "  " + msg.Timestamp.Format("15:04"))
	bubble := m.theme.UserBubble.MaxWidth(m.wrapWidth()).Render(msg.Content)
	return lipgloss.JoinVertical(lipgloss.Left, label, bubble)
}

func (m *Model) renderAssistantMessage(msg *model.Message, last bool) string {
	var parts []string

	label := msg.Role.DisplayName() + "  " + msg.Timestamp.Format("15:04")
	if msg.Round >= 0 {
		label += "  round " + util.IntToString(msg.Round+1)
	}
	parts = append(parts, m.theme.StatsLabel.Render(label))

	// Activity log above the content, the way the platform emits it.
	if m.showActivityLog && len(msg.Log) > 0 {
		parts = append(parts, components.RenderActivityLog(m.theme, msg.Log, m.wrapWidth()))
	}

	if content := strings.TrimSpace(msg.Content); content != "" {
		parts = append(parts, m.renderContent(content, msg.IsStreaming))
	}

	// Structured results: the completed payload, or the accumulator
	// while frames are still arriving.
	payload := msg.Partial
	if msg.Final != nil {
		payload = *msg.Final
	}
	if rendered := components.RenderResults(m.theme, payload, m.wrapWidth()); rendered != "" {
		parts = append(parts, rendered)
	}

	if msg.Incomplete {
		hint := "stopped before completing"
		if last {
			hint += " - C-r to resume"
		}
		parts = append(parts, m.theme.WarningStyle.Render("[!] "+hint))
	}

	return strings.Join(parts, "\n")
}

// renderContent renders message prose. Completed messages go through
// glamour; streaming content uses the lighter code-block parser because
// glamour re-rendering a growing document every frame is too slow.
func (m *Model) renderContent(content string, streaming bool) string {
	if streaming || m.md == nil {
		out := components.ParseCodeBlocks(content, m.wrapWidth())
		if streaming {
			out += m.theme.Spinner.Render(" _")
		}
		return m.theme.AssistantBubble.MaxWidth(m.wrapWidth()).Render(out)
	}

	rendered, err := m.md.Render(content)
	if err != nil {
		rendered = components.ParseCodeBlocks(content, m.wrapWidth())
	}
	return m.theme.AssistantBubble.MaxWidth(m.wrapWidth()).Render(
		strings.TrimRight(rendered, "\n"))
}

func (m *Model) renderEmptyState() string {
	lines := []string{
		m.theme.HeaderTitle.Render("perpdeck"),
		"",
		m.theme.StatsLabel.Render("Ask about your positions, diagnose a strategy,"),
		m.theme.StatsLabel.Render("or generate signal configs and prompts."),
		"",
		m.theme.ShortcutKey.Render("/assistant") + m.theme.ShortcutDesc.Render(" chat|diagnose|signal|prompt"),
		m.theme.ShortcutKey.Render("/conversations") + m.theme.ShortcutDesc.Render(" saved conversations"),
		m.theme.ShortcutKey.Render("/export") + m.theme.ShortcutDesc.Render(" save the transcript"),
		m.theme.ShortcutKey.Render("/help") + m.theme.ShortcutDesc.Render(" all commands and keys"),
	}

	box := m.theme.PickerBox.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m *Model) renderPicker() string {
	p := m.picker

	header := m.theme.HeaderTitle.Render("Conversations")
	if p.cached {
		header += " " + m.theme.WarningStyle.Render("[!] cached")
	}

	var rows []string
	rows = append(rows, header, "")
	for i, c := range p.items {
		line := m.theme.PickerID.Render("#"+util.Int64ToString(c.ID)) + " " +
			util.PadWidth(util.TruncateWidth(c.Title, 40), 40) + " " +
			m.theme.PickerMeta.Render(c.UpdatedAt.Format("Jan 02 15:04"))
		if i == p.index {
			line = m.theme.PickerItemSelected.Render(line)
		} else {
			line = m.theme.PickerItem.Render(line)
		}
		rows = append(rows, line)
	}
	rows = append(rows, "", m.theme.ShortcutDesc.Render("enter open  d delete  esc close"))

	box := m.theme.PickerBox.Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderPromptLibrary() string {
	p := m.promptLib

	var rows []string
	rows = append(rows, m.theme.HeaderTitle.Render("Saved Prompts"), "")
	for i, sp := range p.items {
		line := m.theme.PickerID.Render("#"+util.Int64ToString(sp.ID)) + " " +
			util.PadWidth(util.TruncateWidth(sp.Title, 40), 40) + " " +
			m.theme.PickerMeta.Render(sp.CreatedAt.Format("Jan 02 15:04"))
		if i == p.index {
			line = m.theme.PickerItemSelected.Render(line)
		} else {
			line = m.theme.PickerItem.Render(line)
		}
		rows = append(rows, line)
	}
	rows = append(rows, "", m.theme.ShortcutDesc.Render("enter insert  d delete  esc close"))

	box := m.theme.PickerBox.Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderHelp() string {
	var rows []string
	rows = append(rows, m.theme.HeaderTitle.Render("Keys"), "")
	for _, group := range m.keyMap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			rows = append(rows, m.theme.ShortcutKey.Render(util.PadWidth(h.Key, 12))+
				m.theme.ShortcutDesc.Render(h.Desc))
		}
		rows = append(rows, "")
	}

	rows = append(rows, m.theme.HeaderTitle.Render("Commands"), "")
	for _, c := range [][2]string{
		{"/new", "start a fresh conversation"},
		{"/conversations", "list saved conversations"},
		{"/switch <id>", "open a conversation"},
		{"/delete [id]", "delete a conversation"},
		{"/assistant <mode>", "chat, diagnose, signal, or prompt"},
		{"/resume", "continue a stopped reply"},
		{"/save", "store the last generated prompt"},
		{"/prompts", "browse the saved-prompt library"},
		{"/export [format]", "write transcript to " + m.exportDir},
		{"/quit", "exit perpdeck"},
	} {
		rows = append(rows, m.theme.ShortcutKey.Render(util.PadWidth(c[0], 18))+
			m.theme.ShortcutDesc.Render(c[1]))
	}

	box := m.theme.PickerBox.Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}
