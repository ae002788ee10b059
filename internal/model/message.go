// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// LOG ENTRY TYPE
// =============================================================================

// LogEntryType discriminates entries in a message's activity log.
type LogEntryType string

const (
	LogReasoning  LogEntryType = "reasoning"
	LogToolCall   LogEntryType = "tool_call"
	LogToolResult LogEntryType = "tool_result"
)

// LogEntry is one intermediate event recorded while the platform generates
// an assistant reply. Entries are append-only and preserve arrival order;
// they are replaced wholesale when a conversation is reloaded from history.
type LogEntry struct {
	Type LogEntryType `json:"type"`

	// Reasoning entries
	Content string `json:"content,omitempty"`

	// Tool entries
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation transcript.
type Message struct {
	ID        MessageID
	Role      Role
	Content   string
	Timestamp time.Time

	// Streaming state
	IsStreaming bool
	StatusText  string

	// Activity log for the in-flight (or reloaded) assistant reply.
	Log []LogEntry

	// Final structured payload, set at most once by the terminal stream
	// event and immutable afterwards.
	Final *FinalPayload

	// Partial accumulates incremental result frames while the reply is
	// still streaming. The terminal event resolves it: a done payload
	// replaces the accumulated list outright (last writer wins),
	// otherwise the accumulated list is promoted to Final.
	Partial FinalPayload

	// Interrupted generation: the reply ended early and may be continued.
	Incomplete   bool
	StoppedRound int

	// Round is the derived exchange index for assistant messages that
	// carry results. Assigned purely by enumeration order, never taken
	// from the server. -1 means "no results".
	Round int
}

// NewUserMessage creates an optimistic user message.
func NewUserMessage(id MessageID, content string) *Message {
	return &Message{
		ID:        id,
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Round:     -1,
	}
}

// NewAssistantPlaceholder creates the streaming assistant placeholder that
// pairs with an optimistic user message.
func NewAssistantPlaceholder(id MessageID) *Message {
	return &Message{
		ID:          id,
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
		Round:       -1,
	}
}

// HasResults reports whether the message carries a structured payload.
func (m *Message) HasResults() bool {
	return m.Final != nil && !m.Final.IsEmpty()
}

// Preview returns a single-line truncated preview of the message content.
func (m *Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.FirstLine(m.Content), maxRunes)
}

// Clone returns a deep copy of the message. The reducer copies before
// mutating so callers can hold earlier transcript values safely.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Log != nil {
		cp.Log = make([]LogEntry, len(m.Log))
		copy(cp.Log, m.Log)
	}
	if m.Final != nil {
		f := m.Final.Clone()
		cp.Final = &f
	}
	cp.Partial = m.Partial.Clone()
	return &cp
}
