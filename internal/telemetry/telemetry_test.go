// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/store"
)

func TestSessionAggregation(t *testing.T) {
	tr := NewTracker(nil, false)
	ctx := context.Background()

	rounds := []store.RoundRecord{
		{Frames: 30, LogEntries: 2, FirstEvent: 100 * time.Millisecond, Duration: time.Second},
		{Frames: 50, Dropped: 2, LogEntries: 4, FirstEvent: 500 * time.Millisecond, Duration: 3 * time.Second},
		{Frames: 20, Interrupted: true, Duration: 2 * time.Second},
	}
	for _, r := range rounds {
		if err := tr.RecordRound(ctx, r); err != nil {
			t.Fatalf("RecordRound: %v", err)
		}
	}

	s := tr.Session()
	if s.Rounds != 3 || s.Interrupted != 1 {
		t.Errorf("session = %+v", s)
	}
	if s.Frames != 100 || s.Dropped != 2 || s.LogEntries != 6 {
		t.Errorf("frame counts = %+v", s)
	}
	if s.AvgDuration() != 2*time.Second {
		t.Errorf("avg duration = %v, want 2s", s.AvgDuration())
	}
	if s.AvgFirstEvent() != 200*time.Millisecond {
		t.Errorf("avg first event = %v, want 200ms", s.AvgFirstEvent())
	}
}

func TestAvgDurationWithNoRounds(t *testing.T) {
	if got := (SessionStats{}).AvgDuration(); got != 0 {
		t.Errorf("AvgDuration = %v, want 0", got)
	}
}

func TestPersistenceWhenEnabled(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "perpdeck.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	tr := NewTracker(st, true)
	ctx := context.Background()

	r := store.RoundRecord{ConversationID: 1, Assistant: "chat", Frames: 10,
		Duration: time.Second, StartedAt: time.Now()}
	if err := tr.RecordRound(ctx, r); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}

	sum, err := tr.AllTime(ctx)
	if err != nil {
		t.Fatalf("AllTime: %v", err)
	}
	if sum.Rounds != 1 || sum.TotalFrames != 10 {
		t.Errorf("all-time summary = %+v", sum)
	}
}

func TestDisabledTrackerDoesNotPersist(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "perpdeck.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	tr := NewTracker(st, false)
	ctx := context.Background()
	if err := tr.RecordRound(ctx, store.RoundRecord{Frames: 5, StartedAt: time.Now()}); err != nil {
		t.Fatalf("RecordRound: %v", err)
	}

	// In-memory stats still work.
	if tr.Session().Rounds != 1 {
		t.Error("session stats not updated")
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rounds != 0 {
		t.Errorf("disabled tracker wrote %d rows", stats.Rounds)
	}
}
