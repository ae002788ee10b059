// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"github.com/perpdeck/perpdeck-tui/internal/model"
)

// =============================================================================
// TRANSCRIPT VALUE
// =============================================================================

// Transcript is the ordered list of messages in one conversation, plus the
// conversation id once the server has assigned one (0 = not yet persisted).
//
// Treated as an immutable value: operations return a new Transcript sharing
// untouched messages with the old one.
type Transcript struct {
	ConversationID int64
	Messages       []*model.Message
}

// New returns an empty transcript.
func New() Transcript {
	return Transcript{}
}

// Len returns the number of messages.
func (t Transcript) Len() int { return len(t.Messages) }

// Get returns the message with the given id, or nil.
func (t Transcript) Get(id model.MessageID) *model.Message {
	for _, m := range t.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Append returns a transcript with msg added at the end.
func (t Transcript) Append(msg *model.Message) Transcript {
	msgs := make([]*model.Message, len(t.Messages)+1)
	copy(msgs, t.Messages)
	msgs[len(t.Messages)] = msg
	return Transcript{ConversationID: t.ConversationID, Messages: msgs}
}

// Remove returns a transcript without the message carrying id. Used to roll
// back optimistic messages when a stream fails before persistence.
func (t Transcript) Remove(id model.MessageID) Transcript {
	msgs := make([]*model.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m.ID != id {
			msgs = append(msgs, m)
		}
	}
	return Transcript{ConversationID: t.ConversationID, Messages: msgs}
}

// Streaming returns the in-flight message, or nil. At most one message may
// be streaming at a time; the session controller enforces it by refusing
// sends while one exists.
func (t Transcript) Streaming() *model.Message {
	for _, m := range t.Messages {
		if m.IsStreaming {
			return m
		}
	}
	return nil
}

// replace returns a transcript with the message at index i swapped out.
func (t Transcript) replace(i int, msg *model.Message) Transcript {
	msgs := make([]*model.Message, len(t.Messages))
	copy(msgs, t.Messages)
	msgs[i] = msg
	return Transcript{ConversationID: t.ConversationID, Messages: msgs}
}

// indexOf returns the position of id, or -1.
func (t Transcript) indexOf(id model.MessageID) int {
	for i, m := range t.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// ROUND INDEXING
// =============================================================================

// AssignRounds recomputes the round index of every assistant message that
// carries results, purely by enumeration order: the first result-bearing
// assistant message is round 0, the next round 1, and so on. Server-sent
// round metadata is never consulted. Returns the rewritten transcript and
// the number of rounds.
func AssignRounds(t Transcript) (Transcript, int) {
	msgs := make([]*model.Message, len(t.Messages))
	round := 0
	for i, m := range t.Messages {
		if m.Role == model.RoleAssistant && m.HasResults() {
			cp := m.Clone()
			cp.Round = round
			round++
			msgs[i] = cp
			continue
		}
		if m.Round != -1 {
			cp := m.Clone()
			cp.Round = -1
			msgs[i] = cp
			continue
		}
		msgs[i] = m
	}
	return Transcript{ConversationID: t.ConversationID, Messages: msgs}, round
}
