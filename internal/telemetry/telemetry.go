// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records streaming-session statistics for perpdeck.
//
// Tracking is local-only and never transmits anything. Message content is
// never stored; only frame counts, durations, and outcomes.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/store"
)

// =============================================================================
// SESSION STATS
// =============================================================================

// SessionStats aggregates the exchanges completed since the tracker was
// created (one program run).
type SessionStats struct {
	Rounds          int
	Interrupted     int
	Frames          int
	Dropped         int
	LogEntries      int
	TotalFirstEvent time.Duration
	TotalDuration   time.Duration
}

// AvgDuration returns the mean exchange duration, 0 with no rounds.
func (s SessionStats) AvgDuration() time.Duration {
	if s.Rounds == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(s.Rounds)
}

// AvgFirstEvent returns the mean send-to-first-frame latency, 0 with no
// rounds.
func (s SessionStats) AvgFirstEvent() time.Duration {
	if s.Rounds == 0 {
		return 0
	}
	return s.TotalFirstEvent / time.Duration(s.Rounds)
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker accumulates per-exchange statistics in memory and, when enabled,
// persists them through the local store.
type Tracker struct {
	mu      sync.Mutex
	store   *store.Store // nil disables persistence
	enabled bool
	started time.Time
	session SessionStats
}

// NewTracker creates a tracker. A nil store or enabled=false keeps stats
// in memory only.
func NewTracker(st *store.Store, enabled bool) *Tracker {
	return &Tracker{
		store:   st,
		enabled: enabled,
		started: time.Now(),
	}
}

// Started returns when this tracking session began.
func (t *Tracker) Started() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// RecordRound folds one completed exchange into the session stats and
// persists it. Persistence failures are returned but the in-memory stats
// are updated regardless; a broken local database never loses the session
// view.
func (t *Tracker) RecordRound(ctx context.Context, r store.RoundRecord) error {
	t.mu.Lock()
	t.session.Rounds++
	if r.Interrupted {
		t.session.Interrupted++
	}
	t.session.Frames += r.Frames
	t.session.Dropped += r.Dropped
	t.session.LogEntries += r.LogEntries
	t.session.TotalFirstEvent += r.FirstEvent
	t.session.TotalDuration += r.Duration
	persist := t.enabled && t.store != nil
	t.mu.Unlock()

	if !persist {
		return nil
	}
	return t.store.RecordRound(ctx, r)
}

// Session returns the current session's aggregated stats.
func (t *Tracker) Session() SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// AllTime returns the persisted aggregate across all sessions. Returns a
// zero summary when persistence is disabled.
func (t *Tracker) AllTime(ctx context.Context) (store.RoundSummary, error) {
	t.mu.Lock()
	st := t.store
	enabled := t.enabled
	t.mu.Unlock()

	if !enabled || st == nil {
		return store.RoundSummary{}, nil
	}
	return st.SummarizeRounds(ctx, time.Time{})
}
