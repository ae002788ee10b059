// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// stubMarket serves canned dashboard data.
type stubMarket struct {
	summary   *api.AccountSummary
	positions []api.Position
	watchlist []api.WatchlistEntry
	err       error
}

func (s *stubMarket) AccountSummary(ctx context.Context) (*api.AccountSummary, error) {
	return s.summary, s.err
}

func (s *stubMarket) Positions(ctx context.Context) ([]api.Position, error) {
	return s.positions, s.err
}

func (s *stubMarket) Watchlist(ctx context.Context) ([]api.WatchlistEntry, error) {
	return s.watchlist, s.err
}

func sampleMarket() *stubMarket {
	return &stubMarket{
		summary: &api.AccountSummary{
			Exchange:         "hyperliquid",
			Equity:           10432.55,
			AvailableBalance: 6210.00,
			MarginUsed:       4222.55,
			UnrealizedPnl:    312.40,
			RealizedPnl24h:   -85.10,
		},
		positions: []api.Position{
			{Symbol: "BTC", Side: "long", Size: 0.5, EntryPrice: 61000, MarkPrice: 62200,
				LiqPrice: 41000, Leverage: 5, UnrealizedPnl: 600, FundingPaid: -12.5},
			{Symbol: "ETH", Side: "short", Size: 4, EntryPrice: 2900, MarkPrice: 2975,
				LiqPrice: 3600, Leverage: 3, UnrealizedPnl: -300, FundingPaid: 4.2},
		},
		watchlist: []api.WatchlistEntry{
			{Symbol: "SOL", LastPrice: 145.22, Change24hPct: 3.8, FundingRate: 0.0001},
		},
	}
}

func newTestModel(market Market) *Model {
	m := New(config.Default(), market, styles.NewThemeWithPreference("dark"))
	m.width = 120
	m.height = 40
	return m
}

// =============================================================================
// UPDATE TESTS
// =============================================================================

func TestSnapshotPopulatesView(t *testing.T) {
	m := newTestModel(sampleMarket())

	msg := m.fetchCmd()()
	snap, ok := msg.(snapshotMsg)
	if !ok {
		t.Fatalf("fetch returned %T, want snapshotMsg", msg)
	}
	if snap.err != nil {
		t.Fatalf("fetch error: %v", snap.err)
	}

	m.Update(snap)

	out := m.View()
	for _, want := range []string{"hyperliquid", "10432.55", "BTC", "ETH", "SOL", "+600.00", "-300.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

// RELIABILITY: a failed refresh keeps the previous snapshot on screen.
func TestRefreshFailureKeepsLastSnapshot(t *testing.T) {
	market := sampleMarket()
	m := newTestModel(market)
	m.Update(m.fetchCmd()().(snapshotMsg))

	market.err = errors.New("gateway timeout")
	m.Update(m.fetchCmd()().(snapshotMsg))

	out := m.View()
	if !strings.Contains(out, "BTC") {
		t.Error("stale positions should remain visible after a failed refresh")
	}
	if !strings.Contains(out, "gateway timeout") {
		t.Error("refresh error should be surfaced in the footer")
	}
}

func TestEmptyStateRenders(t *testing.T) {
	m := newTestModel(&stubMarket{summary: &api.AccountSummary{Exchange: "binance"}})
	m.Update(m.fetchCmd()().(snapshotMsg))

	out := m.View()
	if !strings.Contains(out, "no open positions") {
		t.Error("empty positions message missing")
	}
	if !strings.Contains(out, "watchlist is empty") {
		t.Error("empty watchlist message missing")
	}
}

func TestManualRefreshKey(t *testing.T) {
	m := newTestModel(sampleMarket())
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Error("r should trigger a refresh command")
	}
}

func TestZeroRefreshDisablesTimer(t *testing.T) {
	cfg := config.Default()
	cfg.Dashboard.RefreshSecs = 0
	m := New(cfg, sampleMarket(), styles.NewThemeWithPreference("dark"))

	_, cmd := m.Update(refreshTickMsg{})
	if cmd != nil {
		t.Error("tick with refresh disabled should not reschedule")
	}
}
