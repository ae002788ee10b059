// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the perpdeck TUI.
package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// =============================================================================
// SPINNER COMPONENT
// =============================================================================

// Spinner is a loading spinner with an optional elapsed timer, shown while
// a response stream has produced no visible content yet.
type Spinner struct {
	spinner   spinner.Model
	message   string
	detail    string
	startTime time.Time
	isActive  bool
	showTimer bool
}

// NewSpinner creates a new spinner with ASCII-compatible frames.
func NewSpinner() Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = lipgloss.NewStyle().Foreground(styles.Indigo)

	return Spinner{
		spinner:   s,
		message:   "Thinking",
		showTimer: true,
	}
}

// Start activates the spinner and resets the timer.
func (s *Spinner) Start() tea.Cmd {
	s.isActive = true
	s.startTime = time.Now()
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.isActive = false
	s.detail = ""
}

// Active reports whether the spinner is running.
func (s *Spinner) Active() bool {
	return s.isActive
}

// SetMessage updates the spinner label.
func (s *Spinner) SetMessage(message string) {
	s.message = message
}

// SetDetail sets a secondary line under the spinner, e.g. the latest
// status frame from the platform.
func (s *Spinner) SetDetail(detail string) {
	s.detail = detail
}

// Update advances the spinner animation.
func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	if !s.isActive {
		return nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return cmd
}

// View renders the spinner line, plus the detail line when set.
func (s *Spinner) View(theme *styles.Theme) string {
	if !s.isActive {
		return ""
	}

	line := s.spinner.View() + " " + theme.ThinkingText.Render(s.message+"...")
	if s.showTimer {
		elapsed := time.Since(s.startTime).Truncate(time.Second)
		line += " " + theme.ThinkingTime.Render("("+elapsed.String()+")")
	}

	if s.detail != "" {
		line += "\n" + theme.ThinkingDetail.Render(s.detail)
	}

	return line
}
