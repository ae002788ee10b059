// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard provides the account dashboard view for the perpdeck
// TUI: account summary, open positions, and the watchlist, refreshed on a
// configurable interval.
package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// fetchTimeout bounds one dashboard refresh round-trip.
const fetchTimeout = 15 * time.Second

// Market is the slice of the API client the dashboard needs.
// *api.Client satisfies it; tests substitute a stub.
type Market interface {
	AccountSummary(ctx context.Context) (*api.AccountSummary, error)
	Positions(ctx context.Context) ([]api.Position, error)
	Watchlist(ctx context.Context) ([]api.WatchlistEntry, error)
}

// =============================================================================
// MESSAGES
// =============================================================================

// snapshotMsg carries one full dashboard refresh.
type snapshotMsg struct {
	summary   *api.AccountSummary
	positions []api.Position
	watchlist []api.WatchlistEntry
	err       error
}

// refreshTickMsg triggers the next scheduled refresh.
type refreshTickMsg struct {
	Time time.Time
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the dashboard view.
type Model struct {
	theme  *styles.Theme
	client Market

	refresh time.Duration // zero disables auto-refresh

	width  int
	height int

	summary     *api.AccountSummary
	positions   []api.Position
	watchlist   []api.WatchlistEntry
	lastErr     error
	lastUpdated time.Time
	loading     bool
}

// New creates the dashboard view.
func New(cfg *config.Config, client Market, theme *styles.Theme) *Model {
	var refresh time.Duration
	if cfg.Dashboard.RefreshSecs > 0 {
		refresh = time.Duration(cfg.Dashboard.RefreshSecs) * time.Second
	}

	return &Model{
		theme:   theme,
		client:  client,
		refresh: refresh,
	}
}

// Init fetches the first snapshot and arms the refresh timer.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchCmd()}
	if m.refresh > 0 {
		cmds = append(cmds, m.tickCmd())
	}
	return tea.Batch(cmds...)
}

// Update is the Bubble Tea update loop for the dashboard view.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshTickMsg:
		if m.refresh == 0 {
			return m, nil
		}
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			// Keep showing the last good snapshot alongside the error.
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.summary = msg.summary
		m.positions = msg.positions
		m.watchlist = msg.watchlist
		m.lastUpdated = time.Now()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.fetchCmd()
		}
	}

	return m, nil
}

// fetchCmd pulls a full snapshot from the platform in one command.
func (m *Model) fetchCmd() tea.Cmd {
	m.loading = true
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		summary, err := client.AccountSummary(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		positions, err := client.Positions(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		watchlist, err := client.Watchlist(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}

		return snapshotMsg{summary: summary, positions: positions, watchlist: watchlist}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshTickMsg{Time: t}
	})
}
