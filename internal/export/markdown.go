// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// Export renders the transcript to Markdown.
func (e *MarkdownExporter) Export(title string, t transcript.Transcript) ([]byte, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("transcript has no messages")
	}
	if title == "" {
		title = "Untitled conversation"
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
		if t.ConversationID != 0 {
			sb.WriteString(fmt.Sprintf("conversation_id: %d\n", t.ConversationID))
		}
		sb.WriteString(fmt.Sprintf("messages: %d\n", t.Len()))
		sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
		sb.WriteString("generator: perpdeck\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	for i, msg := range t.Messages {
		e.writeMessage(&sb, msg)
		if i < t.Len()-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeMessage(sb *strings.Builder, msg *model.Message) {
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		fmt.Fprintf(sb, "### %s <sub>%s</sub>\n\n",
			msg.Role.DisplayName(), msg.Timestamp.Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(sb, "### %s\n\n", msg.Role.DisplayName())
	}

	if msg.Content != "" {
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}

	if msg.Incomplete {
		sb.WriteString("> Generation was interrupted before completing.\n\n")
	}

	if e.options.IncludeActivityLog && len(msg.Log) > 0 {
		e.writeActivityLog(sb, msg.Log)
	}

	if msg.HasResults() {
		e.writeResults(sb, msg.Final)
	}
}

func (e *MarkdownExporter) writeActivityLog(sb *strings.Builder, log []model.LogEntry) {
	sb.WriteString("<details>\n<summary>Activity log</summary>\n\n")
	for _, entry := range log {
		switch entry.Type {
		case model.LogReasoning:
			fmt.Fprintf(sb, "- thinking: %s\n", entry.Content)
		case model.LogToolCall:
			fmt.Fprintf(sb, "- call `%s(%s)`\n", entry.Name, entry.Arguments)
		case model.LogToolResult:
			fmt.Fprintf(sb, "- result from `%s`: %s\n", entry.Name, entry.Result)
		}
	}
	sb.WriteString("\n</details>\n\n")
}

func (e *MarkdownExporter) writeResults(sb *strings.Builder, final *model.FinalPayload) {
	if len(final.Diagnoses) > 0 {
		sb.WriteString("#### Diagnoses\n\n")
		sb.WriteString("| Severity | Title | Symbol | Summary |\n")
		sb.WriteString("|----------|-------|--------|----------|\n")
		for _, d := range final.Diagnoses {
			fmt.Fprintf(sb, "| %s | %s | %s | %s |\n",
				d.Severity, escapeTableCell(d.Title), d.Symbol, escapeTableCell(d.Summary))
		}
		sb.WriteString("\n")
		for _, d := range final.Diagnoses {
			if d.Suggestion != "" {
				fmt.Fprintf(sb, "> **%s**: %s\n\n", escapeMarkdown(d.Title), d.Suggestion)
			}
		}
	}

	if len(final.SignalConfigs) > 0 {
		sb.WriteString("#### Signal Configurations\n\n")
		for _, sc := range final.SignalConfigs {
			fmt.Fprintf(sb, "**%s** (%s %s, %s)\n\n", escapeMarkdown(sc.Name), sc.Symbol, sc.Timeframe, sc.Direction)
			fmt.Fprintf(sb, "- Entry: %s\n", sc.Entry)
			if sc.StopLoss != "" {
				fmt.Fprintf(sb, "- Stop loss: %s\n", sc.StopLoss)
			}
			if sc.TakeProfit != "" {
				fmt.Fprintf(sb, "- Take profit: %s\n", sc.TakeProfit)
			}
			for k, v := range sc.Params {
				fmt.Fprintf(sb, "- %s: %g\n", k, v)
			}
			sb.WriteString("\n")
		}
	}

	if final.Prompt != nil {
		fmt.Fprintf(sb, "#### Generated Prompt: %s\n\n", escapeMarkdown(final.Prompt.Title))
		sb.WriteString("```\n")
		sb.WriteString(final.Prompt.Body)
		sb.WriteString("\n```\n\n")
	}
}

// =============================================================================
// ESCAPING
// =============================================================================

// escapeMarkdown escapes characters that would break formatting in
// titles and headings.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]",
	)
	return replacer.Replace(s)
}

// escapeTableCell keeps pipes and newlines from breaking table rows.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// escapeYAML escapes special YAML characters in values.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
