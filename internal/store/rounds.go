// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// ROUND STATISTICS
// =============================================================================

// RoundRecord is one completed streaming exchange, recorded locally for
// the session statistics screen.
type RoundRecord struct {
	ConversationID int64
	Assistant      string
	Frames         int
	Dropped        int // malformed frames discarded by the decoder
	LogEntries     int
	Interrupted    bool
	FirstEvent     time.Duration // latency from send to the first frame
	Duration       time.Duration
	StartedAt      time.Time
}

// RecordRound persists one completed exchange.
func (s *Store) RecordRound(ctx context.Context, r RoundRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (conversation_id, assistant, frames, dropped, log_entries, interrupted, first_event_ms, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ConversationID, r.Assistant, r.Frames, r.Dropped, r.LogEntries,
		boolToInt(r.Interrupted), r.FirstEvent.Milliseconds(),
		r.Duration.Milliseconds(), r.StartedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// RoundSummary aggregates recorded rounds.
type RoundSummary struct {
	Rounds          int
	Interrupted     int
	TotalFrames     int
	TotalDropped    int
	TotalLogEntries int
	AvgFirstEventMs int64
	AvgDurationMs   int64
}

// SummarizeRounds aggregates rounds recorded since the given time. A zero
// time aggregates everything.
func (s *Store) SummarizeRounds(ctx context.Context, since time.Time) (RoundSummary, error) {
	var sum RoundSummary
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(interrupted), 0),
		       COALESCE(SUM(frames), 0),
		       COALESCE(SUM(dropped), 0),
		       COALESCE(SUM(log_entries), 0),
		       COALESCE(CAST(AVG(first_event_ms) AS INTEGER), 0),
		       COALESCE(CAST(AVG(duration_ms) AS INTEGER), 0)
		FROM rounds
		WHERE started_at >= ?`, since)
	if err := row.Scan(&sum.Rounds, &sum.Interrupted, &sum.TotalFrames, &sum.TotalDropped,
		&sum.TotalLogEntries, &sum.AvgFirstEventMs, &sum.AvgDurationMs); err != nil {
		return RoundSummary{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return sum, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
