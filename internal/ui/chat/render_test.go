// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

// =============================================================================
// RENDER LIMITER TESTS
// =============================================================================

func TestLimiterCleanNeverRenders(t *testing.T) {
	l := NewRenderLimiter()
	if l.ShouldRender() {
		t.Error("clean limiter should not request a render")
	}
	if l.ForceRender() {
		t.Error("clean limiter should not force a render")
	}
}

// PERFORMANCE: back-to-back frames must not trigger back-to-back renders.
func TestLimiterCapsFrameRate(t *testing.T) {
	l := NewRenderLimiter()

	l.MarkDirty()
	if l.ShouldRender() {
		t.Error("render immediately after the last one should be held back")
	}

	// Still dirty: the held-back change renders once the interval passes.
	time.Sleep(40 * time.Millisecond)
	if !l.ShouldRender() {
		t.Error("render should be due after the frame interval")
	}

	// Consumed: nothing further until marked dirty again.
	if l.ShouldRender() {
		t.Error("second render without new changes")
	}
}

func TestLimiterForceRenderIgnoresTiming(t *testing.T) {
	l := NewRenderLimiter()
	l.MarkDirty()

	if !l.ForceRender() {
		t.Error("force render should consume a pending change immediately")
	}
	if l.Pending() != 0 {
		t.Error("force render should clear pending count")
	}
}

func TestLimiterPendingAccumulates(t *testing.T) {
	l := NewRenderLimiter()
	for i := 0; i < 7; i++ {
		l.MarkDirty()
	}
	if got := l.Pending(); got != 7 {
		t.Errorf("pending = %d, want 7", got)
	}

	l.Reset()
	if l.Pending() != 0 {
		t.Error("reset should clear pending count")
	}
	if l.ShouldRender() {
		t.Error("reset limiter should be clean")
	}
}

func TestLimiterFPSBoundsClamped(t *testing.T) {
	for _, fps := range []int{0, -5, 1000} {
		l := NewRenderLimiterWithFPS(fps)
		if l.minInterval != time.Second/defaultMaxFPS {
			t.Errorf("fps %d should clamp to default interval", fps)
		}
	}
}
