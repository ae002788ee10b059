// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// This file implements redraw coalescing during streaming. Content frames
// can arrive far faster than a terminal can usefully repaint; the limiter
// batches them so the transcript is re-rendered at a capped frame rate
// instead of once per frame.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// RENDER LIMITER
// =============================================================================

const (
	// defaultMaxFPS caps streaming redraws. 30fps is smooth without
	// burning a core on repaints.
	defaultMaxFPS = 30
)

// RenderLimiter coalesces transcript redraws during streaming.
//
// Stream events mark the limiter dirty; the update loop asks ShouldRender
// on each event and on a periodic tick, and only rebuilds the viewport
// when the answer is yes. Thread-safe, since events originate on the
// stream goroutine.
type RenderLimiter struct {
	mu          sync.Mutex
	dirty       bool
	pending     int
	lastRender  time.Time
	minInterval time.Duration
}

// NewRenderLimiter creates a limiter capped at the default frame rate.
func NewRenderLimiter() *RenderLimiter {
	return NewRenderLimiterWithFPS(defaultMaxFPS)
}

// NewRenderLimiterWithFPS creates a limiter with a custom cap.
func NewRenderLimiterWithFPS(maxFPS int) *RenderLimiter {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = defaultMaxFPS
	}
	return &RenderLimiter{
		minInterval: time.Second / time.Duration(maxFPS),
		lastRender:  time.Now(),
	}
}

// MarkDirty records that the transcript changed since the last render.
func (r *RenderLimiter) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
	r.pending++
}

// ShouldRender reports whether a redraw is due, and if so consumes the
// dirty flag. A redraw is due when the transcript changed and at least
// the minimum interval has passed since the last one.
func (r *RenderLimiter) ShouldRender() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return false
	}
	if time.Since(r.lastRender) < r.minInterval {
		return false
	}

	r.consumeLocked()
	return true
}

// ForceRender consumes the dirty flag regardless of timing. Used on
// terminal frames so the final content is never held back by the cap.
func (r *RenderLimiter) ForceRender() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return false
	}
	r.consumeLocked()
	return true
}

// Pending returns the number of changes since the last render.
func (r *RenderLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Reset clears state when a stream starts or is abandoned.
func (r *RenderLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = false
	r.pending = 0
	r.lastRender = time.Now()
}

func (r *RenderLimiter) consumeLocked() {
	r.dirty = false
	r.pending = 0
	r.lastRender = time.Now()
}

// =============================================================================
// RENDER TICK
// =============================================================================

// RenderTickMsg drives periodic redraw checks while a stream is active,
// so slow streams still repaint even when no new frame arrives.
type RenderTickMsg struct {
	Time time.Time
}

// renderTickCmd schedules the next redraw check at the frame-rate cap.
func renderTickCmd() tea.Cmd {
	return tea.Tick(time.Second/defaultMaxFPS, func(t time.Time) tea.Msg {
		return RenderTickMsg{Time: t}
	})
}
