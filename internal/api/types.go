// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/model"
)

// =============================================================================
// CHAT WIRE TYPES
// =============================================================================

// Assistant selects which platform assistant a conversation is bound to.
const (
	AssistantChat      = "chat"
	AssistantDiagnose  = "diagnose"
	AssistantSignal    = "signal"
	AssistantPromptGen = "prompt"
)

// ChatStreamRequest is the body of the streaming chat POST.
type ChatStreamRequest struct {
	// ConversationID is omitted for the first exchange; the server
	// creates the conversation lazily and reports the id in the
	// terminal done event.
	ConversationID int64  `json:"conversation_id,omitempty"`
	Assistant      string `json:"assistant,omitempty"`
	Content        string `json:"content"`

	// ContinueFromRound resumes an interrupted generation.
	ContinueFromRound int `json:"continue_from_round,omitempty"`
}

// ServerMessage is one persisted message as the platform returns it from
// the history endpoint. Field names are the server's; the session
// controller maps them onto the client model.
type ServerMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	Interrupted  bool `json:"interrupted,omitempty"`
	StoppedRound int  `json:"stopped_round,omitempty"`

	// Round is server-side grouping metadata. The client recomputes its
	// own round indices from message order and ignores this field.
	Round int `json:"round,omitempty"`

	Steps []ServerStep `json:"steps,omitempty"`

	Diagnoses       []model.DiagnosisCard  `json:"diagnoses,omitempty"`
	SignalConfigs   []model.SignalConfig   `json:"signal_configs,omitempty"`
	GeneratedPrompt *model.GeneratedPrompt `json:"generated_prompt,omitempty"`
}

// ServerStep is the platform's shape for one activity-log entry.
type ServerStep struct {
	Kind   string `json:"kind"` // "reasoning", "tool_call", "tool_result"
	Text   string `json:"text,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Args   string `json:"args,omitempty"`
	Output string `json:"output,omitempty"`
}

// =============================================================================
// DASHBOARD WIRE TYPES
// =============================================================================

// AccountSummary is the account equity snapshot rendered on the dashboard.
type AccountSummary struct {
	Exchange         string  `json:"exchange"` // "hyperliquid", "binance"
	Equity           float64 `json:"equity"`
	AvailableBalance float64 `json:"available_balance"`
	MarginUsed       float64 `json:"margin_used"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
	RealizedPnl24h   float64 `json:"realized_pnl_24h"`
}

// Position is one open perpetual position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // "long", "short"
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	LiqPrice      float64 `json:"liq_price"`
	Leverage      float64 `json:"leverage"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	FundingPaid   float64 `json:"funding_paid"`
}

// WatchlistEntry is one symbol on the server-persisted watchlist.
type WatchlistEntry struct {
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	Change24hPct float64 `json:"change_24h_pct"`
	FundingRate  float64 `json:"funding_rate"`
}

// StorageStats reports the server-side retention/storage counters shown in
// settings.
type StorageStats struct {
	Conversations int   `json:"conversations"`
	Messages      int   `json:"messages"`
	BacktestRuns  int   `json:"backtest_runs"`
	StorageBytes  int64 `json:"storage_bytes"`
	RetentionDays int   `json:"retention_days"`
}

// =============================================================================
// BACKTEST WIRE TYPES
// =============================================================================

// Backtest job states reported by the platform.
const (
	BacktestPending   = "pending"
	BacktestRunning   = "running"
	BacktestCompleted = "completed"
	BacktestFailed    = "failed"
)

// BacktestRequest submits a prompt backtest.
type BacktestRequest struct {
	Prompt    string `json:"prompt"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`
}

// BacktestJob is the submission/status response.
type BacktestJob struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"` // 0..1
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BacktestResult is the completed run summary.
type BacktestResult struct {
	JobID        int64   `json:"job_id"`
	Trades       int     `json:"trades"`
	WinRate      float64 `json:"win_rate"`
	PnlPct       float64 `json:"pnl_pct"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	ProfitFactor float64 `json:"profit_factor"`
}
