// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui hosts the top-level Bubble Tea application: a tab bar over
// the chat, dashboard, and backtest views.
package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/ui/backtest"
	"github.com/perpdeck/perpdeck-tui/internal/ui/chat"
	"github.com/perpdeck/perpdeck-tui/internal/ui/dashboard"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// Tab identifies one of the top-level views.
type Tab int

const (
	TabChat Tab = iota
	TabDashboard
	TabBacktest
)

var tabNames = map[Tab]string{
	TabChat:      "Chat",
	TabDashboard: "Dashboard",
	TabBacktest:  "Backtest",
}

// App is the root Bubble Tea model.
type App struct {
	theme *styles.Theme

	chat      *chat.Model
	dashboard *dashboard.Model
	backtest  *backtest.Model

	active      Tab
	initialized map[Tab]bool

	width  int
	height int
}

// NewApp assembles the application from its views.
func NewApp(cfg *config.Config, ctrl *session.Controller, client *api.Client, theme *styles.Theme) *App {
	return &App{
		theme:       theme,
		chat:        chat.New(cfg, ctrl, theme),
		dashboard:   dashboard.New(cfg, client, theme),
		backtest:    backtest.New(client, theme),
		initialized: map[Tab]bool{TabChat: true},
	}
}

// Chat exposes the chat view for optional wiring (telemetry, store).
func (a *App) Chat() *chat.Model {
	return a.chat
}

// Init starts the chat view; the other tabs initialize lazily on first
// activation so the dashboard does not hit the platform before it is
// looked at.
func (a *App) Init() tea.Cmd {
	return a.chat.Init()
}

// Update is the root update loop.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Reserve a row for the tab bar.
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 1}
		var cmds []tea.Cmd
		cmds = append(cmds, a.forward(a.chatModel(), inner))
		cmds = append(cmds, a.forward(a.dashModel(), inner))
		cmds = append(cmds, a.forward(a.backtestModel(), inner))
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		if cmd, handled := a.handleTabKey(msg); handled {
			return a, cmd
		}
		// Other keys go to the active view only.
		return a, a.forward(a.activeModel(), msg)
	}

	// Non-key messages fan out: stream events belong to chat, refresh
	// ticks to the dashboard, poll ticks to the backtest view. Each view
	// ignores what it does not know.
	var cmds []tea.Cmd
	cmds = append(cmds, a.forward(a.chatModel(), msg))
	cmds = append(cmds, a.forward(a.dashModel(), msg))
	cmds = append(cmds, a.forward(a.backtestModel(), msg))
	return a, tea.Batch(cmds...)
}

// handleTabKey switches tabs on F1-F3. Returns handled=false for
// everything else.
func (a *App) handleTabKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	var next Tab
	switch msg.String() {
	case "f1":
		next = TabChat
	case "f2":
		next = TabDashboard
	case "f3":
		next = TabBacktest
	default:
		return nil, false
	}

	if next == a.active {
		return nil, true
	}
	a.active = next

	if !a.initialized[next] {
		a.initialized[next] = true
		switch next {
		case TabDashboard:
			return a.dashboard.Init(), true
		case TabBacktest:
			return a.backtest.Init(), true
		}
	}
	return nil, true
}

// View renders the tab bar and the active view.
func (a *App) View() string {
	var tabs []string
	for _, t := range []Tab{TabChat, TabDashboard, TabBacktest} {
		label := "F" + string(rune('1'+int(t))) + " " + tabNames[t]
		if t == a.active {
			tabs = append(tabs, a.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, a.theme.TabInactive.Render(label))
		}
	}

	var body string
	switch a.active {
	case TabDashboard:
		body = a.dashboard.View()
	case TabBacktest:
		body = a.backtest.View()
	default:
		body = a.chat.View()
	}

	return strings.Join(tabs, " ") + "\n" + body
}

// updatable lets the app treat its views uniformly.
type updatable interface {
	Update(tea.Msg) (tea.Model, tea.Cmd)
}

func (a *App) chatModel() updatable     { return a.chat }
func (a *App) dashModel() updatable     { return a.dashboard }
func (a *App) backtestModel() updatable { return a.backtest }

func (a *App) activeModel() updatable {
	switch a.active {
	case TabDashboard:
		return a.dashboard
	case TabBacktest:
		return a.backtest
	default:
		return a.chat
	}
}

// forward routes a message to a view, discarding the returned model
// because all views use pointer receivers.
func (a *App) forward(v updatable, msg tea.Msg) tea.Cmd {
	_, cmd := v.Update(msg)
	return cmd
}
