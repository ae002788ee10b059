// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the perpdeck TUI.
//
// This file renders the structured results attached to completed assistant
// replies: diagnosis cards, signal configurations, and generated prompts.
package components

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// RESULT CARDS
// =============================================================================

// RenderResults renders every structured result in the payload, stacked.
// Returns "" for an empty payload.
func RenderResults(theme *styles.Theme, payload model.FinalPayload, maxWidth int) string {
	if payload.IsEmpty() {
		return ""
	}

	var sections []string
	for _, d := range payload.Diagnoses {
		sections = append(sections, RenderDiagnosis(theme, d, maxWidth))
	}
	for _, sc := range payload.SignalConfigs {
		sections = append(sections, RenderSignalConfig(theme, sc, maxWidth))
	}
	if payload.Prompt != nil {
		sections = append(sections, RenderGeneratedPrompt(theme, *payload.Prompt, maxWidth))
	}

	return strings.Join(sections, "\n")
}

// RenderDiagnosis renders one diagnosis card with severity-colored border.
func RenderDiagnosis(theme *styles.Theme, d model.DiagnosisCard, maxWidth int) string {
	accent := styles.SeverityColor(d.Severity)

	title := theme.ResultTitle.Render(d.Title)
	meta := "[" + d.Severity + "]"
	if d.Symbol != "" {
		meta += " " + d.Symbol
	}
	header := title + " " + theme.ResultMeta.Render(meta)

	body := header + "\n" + theme.ResultBody.Render(d.Summary)
	if d.Suggestion != "" {
		body += "\n" + theme.ResultSuggested.Render("> "+d.Suggestion)
	}

	return theme.ResultCard.
		BorderForeground(accent).
		MaxWidth(cardWidth(maxWidth)).
		Render(body)
}

// RenderSignalConfig renders one signal configuration card.
func RenderSignalConfig(theme *styles.Theme, sc model.SignalConfig, maxWidth int) string {
	header := theme.ResultTitle.Render(sc.Name) + " " +
		theme.ResultMeta.Render(sc.Symbol+" "+sc.Timeframe+" "+sc.Direction)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, theme.ResultBody.Render("entry: "+sc.Entry))
	if sc.StopLoss != "" {
		lines = append(lines, theme.ResultBody.Render("stop: "+sc.StopLoss))
	}
	if sc.TakeProfit != "" {
		lines = append(lines, theme.ResultBody.Render("target: "+sc.TakeProfit))
	}

	// Params in stable order so re-renders don't shuffle the card.
	if len(sc.Params) > 0 {
		keys := make([]string, 0, len(sc.Params))
		for k := range sc.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var params []string
		for _, k := range keys {
			params = append(params, k+"="+util.FloatToString(sc.Params[k]))
		}
		lines = append(lines, theme.ResultMeta.Render(strings.Join(params, " ")))
	}

	var accent lipgloss.AdaptiveColor
	switch sc.Direction {
	case "long":
		accent = styles.Long
	case "short":
		accent = styles.Short
	default:
		accent = styles.Indigo
	}

	return theme.ResultCard.
		BorderForeground(accent).
		MaxWidth(cardWidth(maxWidth)).
		Render(strings.Join(lines, "\n"))
}

// RenderGeneratedPrompt renders a generated strategy prompt card.
func RenderGeneratedPrompt(theme *styles.Theme, p model.GeneratedPrompt, maxWidth int) string {
	header := theme.ResultTitle.Render("Prompt: " + p.Title)
	body := header + "\n" + theme.ResultBody.Render(p.Body)

	return theme.ResultCard.
		BorderForeground(styles.Cyan).
		MaxWidth(cardWidth(maxWidth)).
		Render(body)
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// RenderActivityLog renders the reasoning/tool log of a message, one line
// per entry, truncated to the available width.
func RenderActivityLog(theme *styles.Theme, log []model.LogEntry, maxWidth int) string {
	if len(log) == 0 {
		return ""
	}

	width := cardWidth(maxWidth)
	var lines []string
	for _, entry := range log {
		switch entry.Type {
		case model.LogReasoning:
			lines = append(lines, theme.ActivityCall.Render(
				util.TruncateWidth("* "+util.FirstLine(entry.Content), width)))
		case model.LogToolCall:
			call := entry.Name
			if entry.Arguments != "" {
				call += "(" + entry.Arguments + ")"
			}
			lines = append(lines, theme.ActivityCall.Render(
				util.TruncateWidth("-> "+call, width)))
		case model.LogToolResult:
			lines = append(lines, theme.ActivityResult.Render(
				util.TruncateWidth("<- "+entry.Name+": "+util.FirstLine(entry.Result), width)))
		}
	}

	return strings.Join(lines, "\n")
}

func cardWidth(maxWidth int) int {
	w := maxWidth - 4
	if w < 24 {
		w = 24
	}
	return w
}
