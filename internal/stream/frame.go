// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "encoding/json"

// =============================================================================
// EVENT TYPES
// =============================================================================

// Event types emitted by the platform's chat stream. Unknown types are
// passed through to the reducer, which ignores them; new server-side events
// must never break older clients.
const (
	EventStatus       = "status"
	EventReasoning    = "reasoning"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventContent      = "content"
	EventDone         = "done"
	EventError        = "error"
	EventInterrupted  = "interrupted"
	EventSignalConfig = "signal_config"
	EventDiagnosis    = "diagnosis"
)

// =============================================================================
// FRAME TYPE
// =============================================================================

// Frame is one decoded {eventType, data} unit from the event stream.
// Frames are transient: the reducer folds them into the transcript and
// nothing retains them afterwards.
type Frame struct {
	Event string
	Data  json.RawMessage
}

// IsTerminal reports whether the frame ends the assistant reply.
func (f Frame) IsTerminal() bool {
	return f.Event == EventDone || f.Event == EventInterrupted
}
