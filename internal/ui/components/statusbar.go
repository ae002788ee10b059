// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the perpdeck TUI.
package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT - bottom status bar
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusLoading
	StatusInterrupted
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusStreaming:
		return "Streaming..."
	case StatusLoading:
		return "Loading..."
	case StatusInterrupted:
		return "Stopped"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns an icon for the status.
// ACCESSIBILITY: Uses distinct shapes alongside colors for colorblind users.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusStreaming:
		return "~"
	case StatusLoading:
		return styles.StatusIndicators.Pending
	case StatusInterrupted:
		return styles.StatusIndicators.Warning
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// StatusBar is the bottom status bar: assistant, conversation, exchange
// context, and streaming progress.
type StatusBar struct {
	Assistant     string        // Active assistant mode (chat/diagnose/signal/prompt)
	Conversation  string        // Active conversation title, empty for a new one
	Exchange      string        // hyperliquid / binance
	Testnet       bool          // Whether the exchange context is testnet
	Status        Status        // Current status
	Frames        int           // Frames received in the current/last stream
	Elapsed       time.Duration // Stream elapsed time
	Width         int           // Available width
	ShowShortcuts bool          // Show keyboard shortcuts

	theme *styles.Theme
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:        StatusReady,
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetStreaming updates the streaming progress fields.
func (sb *StatusBar) SetStreaming(frames int, elapsed time.Duration) {
	sb.Status = StatusStreaming
	sb.Frames = frames
	sb.Elapsed = elapsed
}

// Render renders the status bar as a single line.
func (sb *StatusBar) Render() string {
	if sb.theme == nil {
		return ""
	}

	var segments []string

	// Assistant mode
	segments = append(segments, sb.theme.ShortcutKey.Render(strings.ToUpper(sb.Assistant)))

	// Exchange context; testnet gets the amber treatment so it is never
	// mistaken for live trading.
	if sb.Exchange != "" {
		label := sb.Exchange
		style := sb.theme.ExchangeLive
		if sb.Testnet {
			label += " testnet"
			style = sb.theme.ExchangeTest
		}
		segments = append(segments, style.Render(label))
	}

	// Conversation title
	if sb.Conversation != "" {
		segments = append(segments, util.TruncateWidth(sb.Conversation, 32))
	}

	// Status with shape indicator
	segments = append(segments, sb.Status.Icon()+" "+sb.Status.String())

	// Streaming progress
	if sb.Status == StatusStreaming && sb.Frames > 0 {
		progress := util.IntToString(sb.Frames) + " frames " +
			sb.Elapsed.Truncate(100*time.Millisecond).String()
		segments = append(segments, sb.theme.StatsValue.Render(progress))
	}

	left := strings.Join(segments, sb.theme.ShortcutDesc.Render(" | "))

	// Shortcuts, right-aligned when there is room.
	var right string
	if sb.ShowShortcuts && sb.Width >= 80 {
		right = sb.theme.ShortcutKey.Render("C-c") + sb.theme.ShortcutDesc.Render(" stop ") +
			sb.theme.ShortcutKey.Render("?") + sb.theme.ShortcutDesc.Render(" help ") +
			sb.theme.ShortcutKey.Render("C-q") + sb.theme.ShortcutDesc.Render(" quit")
	}

	gap := sb.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
		right = ""
	}

	return sb.theme.StatusBar.Width(sb.Width).Render(left + strings.Repeat(" ", gap) + right)
}
