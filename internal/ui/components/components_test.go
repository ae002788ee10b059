// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewThemeWithPreference("dark")
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestStatusBarRender(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.Assistant = "diagnose"
	sb.Exchange = "hyperliquid"
	sb.Conversation = "BTC breakout review"
	sb.Width = 120

	out := sb.Render()
	if !strings.Contains(out, "DIAGNOSE") {
		t.Error("status bar missing assistant mode")
	}
	if !strings.Contains(out, "hyperliquid") {
		t.Error("status bar missing exchange")
	}
	if !strings.Contains(out, "BTC breakout review") {
		t.Error("status bar missing conversation title")
	}
}

// Testnet must be visually distinct so it is never mistaken for live.
func TestStatusBarTestnetLabel(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.Assistant = "chat"
	sb.Exchange = "binance"
	sb.Testnet = true
	sb.Width = 100

	if !strings.Contains(sb.Render(), "binance testnet") {
		t.Error("testnet exchange should be labeled")
	}
}

func TestStatusBarStreamingProgress(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.Assistant = "chat"
	sb.Width = 120
	sb.SetStreaming(42, 3*time.Second)

	out := sb.Render()
	if !strings.Contains(out, "42 frames") {
		t.Error("streaming status should show frame count")
	}
	if !strings.Contains(out, "Streaming") {
		t.Error("streaming status should show streaming label")
	}
}

// =============================================================================
// TOAST TESTS
// =============================================================================

func TestToastManagerAddAndExpire(t *testing.T) {
	m := NewToastManager()

	id := m.AddError("history reload failed")
	if id == 0 {
		t.Fatal("expected non-zero toast id")
	}
	if !m.HasToasts() {
		t.Fatal("expected active toast")
	}

	// An already-expired toast gets dropped by the next tick.
	expired := NewStatusToast("old news")
	expired.CreatedAt = time.Now().Add(-time.Minute)
	m.Add(expired)

	remaining := m.Tick()
	if len(remaining) != 1 {
		t.Fatalf("expected 1 toast after expiry tick, got %d", len(remaining))
	}
	if remaining[0].Kind != ToastKindError {
		t.Error("surviving toast should be the fresh error")
	}
}

func TestToastManagerBounded(t *testing.T) {
	m := NewToastManager()
	for i := 0; i < 10; i++ {
		m.AddStatus("toast")
	}
	if got := len(m.Active()); got > 5 {
		t.Errorf("toast stack should be bounded at 5, got %d", got)
	}
}

func TestToastManagerRemove(t *testing.T) {
	m := NewToastManager()
	id := m.AddWarning("rate limited")
	m.Remove(id)
	if m.HasToasts() {
		t.Error("removed toast should be gone")
	}
}

func TestRenderToastsIncludesIndicator(t *testing.T) {
	m := NewToastManager()
	m.AddError("boom")
	out := m.RenderToasts(testTheme(), 80)
	if !strings.Contains(out, styles.StatusIndicators.Error) {
		t.Error("error toast should carry the error shape indicator")
	}
}

// =============================================================================
// RESULT CARD TESTS
// =============================================================================

func TestRenderDiagnosis(t *testing.T) {
	d := model.DiagnosisCard{
		Title:      "Overleveraged",
		Severity:   "critical",
		Symbol:     "BTC",
		Summary:    "Position size exceeds 20% of equity.",
		Suggestion: "Reduce leverage below 5x.",
	}

	out := RenderDiagnosis(testTheme(), d, 100)
	for _, want := range []string{"Overleveraged", "critical", "BTC", "Reduce leverage"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnosis card missing %q", want)
		}
	}
}

func TestRenderSignalConfigParamsStable(t *testing.T) {
	sc := model.SignalConfig{
		Name:      "EMA Cross",
		Symbol:    "ETH",
		Timeframe: "4h",
		Direction: "long",
		Entry:     "ema(9) crosses above ema(21)",
		Params:    map[string]float64{"fast": 9, "slow": 21, "atr": 14},
	}

	first := RenderSignalConfig(testTheme(), sc, 100)
	for i := 0; i < 5; i++ {
		if RenderSignalConfig(testTheme(), sc, 100) != first {
			t.Fatal("signal config render should be deterministic across map iterations")
		}
	}
	if !strings.Contains(first, "EMA Cross") {
		t.Error("signal card missing name")
	}
}

func TestRenderResultsEmptyPayload(t *testing.T) {
	if out := RenderResults(testTheme(), model.FinalPayload{}, 80); out != "" {
		t.Errorf("empty payload should render nothing, got %q", out)
	}
}

func TestRenderActivityLog(t *testing.T) {
	log := []model.LogEntry{
		{Type: model.LogReasoning, Content: "Comparing funding rates"},
		{Type: model.LogToolCall, Name: "fetch_funding", Arguments: `{"symbol":"BTC"}`},
		{Type: model.LogToolResult, Name: "fetch_funding", Result: "0.01%"},
	}

	out := RenderActivityLog(testTheme(), log, 120)
	if !strings.Contains(out, "fetch_funding") {
		t.Error("activity log missing tool name")
	}
	if !strings.Contains(out, "Comparing funding rates") {
		t.Error("activity log missing reasoning entry")
	}
}

// =============================================================================
// TABLE TESTS
// =============================================================================

func TestTableRender(t *testing.T) {
	tbl := NewTable(testTheme(), "Symbol", "Size", "PnL")
	tbl.AddRow(PlainCell("BTC"), PlainCell("0.5"), TintedCell("+120.00", 120))
	tbl.AddRow(PlainCell("ETH"), PlainCell("-2.0"), TintedCell("-38.20", -38.2))

	out := tbl.Render(80)
	for _, want := range []string{"Symbol", "BTC", "ETH", "+120.00", "-38.20"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q", want)
		}
	}
}

func TestTableShortRowPadded(t *testing.T) {
	tbl := NewTable(testTheme(), "A", "B", "C")
	tbl.AddRow(PlainCell("only"))
	// Must not panic, and renders the single cell.
	if out := tbl.Render(40); !strings.Contains(out, "only") {
		t.Error("short row cell missing")
	}
}

// =============================================================================
// CODE BLOCK TESTS
// =============================================================================

func TestParseCodeBlocks(t *testing.T) {
	text := "before\n```go\nfunc main() {}\n```\nafter"
	out := ParseCodeBlocks(text, 80)
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Error("prose around code block should survive")
	}
	if !strings.Contains(out, "main") {
		t.Error("code content should survive highlighting")
	}
}

// RELIABILITY: streams are frequently cut mid-fence.
func TestParseCodeBlocksUnclosedFence(t *testing.T) {
	text := "```python\nprint('hi')"
	out := ParseCodeBlocks(text, 80)
	if !strings.Contains(out, "print") {
		t.Error("unclosed code block content should still render")
	}
}
