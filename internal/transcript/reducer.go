// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"encoding/json"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/stream"
)

// =============================================================================
// NOTES (REDUCER SIDE EFFECTS AS VALUES)
// =============================================================================

// NoteLevel classifies a reducer note for the notification surface.
type NoteLevel int

const (
	NoteNone NoteLevel = iota
	NoteError
)

// Note is a user-visible notification produced while folding a frame.
// The zero value means "nothing to show".
type Note struct {
	Level NoteLevel
	Text  string
}

// =============================================================================
// FRAME PAYLOAD SHAPES
// =============================================================================

type statusPayload struct {
	Text string `json:"text"`
}

type reasoningPayload struct {
	Content string `json:"content"`
}

type toolCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolResultPayload struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

type contentPayload struct {
	Content string `json:"content"`
}

type donePayload struct {
	Content        string                 `json:"content"`
	ConversationID int64                  `json:"conversation_id"`
	Diagnoses      []model.DiagnosisCard  `json:"diagnoses"`
	SignalConfigs  []model.SignalConfig   `json:"signal_configs"`
	Prompt         *model.GeneratedPrompt `json:"generated_prompt"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type interruptedPayload struct {
	Round int `json:"round"`
}

// rawString renders a JSON value for the activity log: strings are
// unquoted, everything else is kept as compact JSON text.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// =============================================================================
// REDUCER
// =============================================================================

// Apply folds one frame into the transcript against the target message and
// returns the new transcript plus an optional notification.
//
// Apply is a pure function of its inputs: identical (transcript, id, frame)
// triples yield structurally equal results. It never panics on stream
// input — unknown event types and unparseable payloads are no-ops, so the
// client stays forward compatible with server protocol additions.
func Apply(t Transcript, id model.MessageID, f stream.Frame) (Transcript, Note) {
	i := t.indexOf(id)
	if i < 0 {
		// Frame for a message we no longer hold (e.g. after a
		// conversation switch). Dropping it is the only safe choice.
		return t, Note{}
	}

	switch f.Event {
	case stream.EventStatus:
		var p statusPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.StatusText = p.Text
		return t.replace(i, msg), Note{}

	case stream.EventReasoning:
		var p reasoningPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.Log = append(msg.Log, model.LogEntry{Type: model.LogReasoning, Content: p.Content})
		msg.StatusText = "Thinking..."
		return t.replace(i, msg), Note{}

	case stream.EventToolCall:
		var p toolCallPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.Log = append(msg.Log, model.LogEntry{
			Type:      model.LogToolCall,
			Name:      p.Name,
			Arguments: rawString(p.Arguments),
		})
		msg.StatusText = "Calling " + p.Name + "..."
		return t.replace(i, msg), Note{}

	case stream.EventToolResult:
		var p toolResultPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.Log = append(msg.Log, model.LogEntry{
			Type:   model.LogToolResult,
			Name:   p.Name,
			Result: rawString(p.Result),
		})
		msg.StatusText = "Got result from " + p.Name
		return t.replace(i, msg), Note{}

	case stream.EventContent:
		var p contentPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		// Each content frame carries the full accumulated text so far:
		// replace, never append.
		msg.Content = p.Content
		msg.StatusText = ""
		return t.replace(i, msg), Note{}

	case stream.EventDone:
		var p donePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		if p.Content != "" || msg.Content == "" {
			// Without a prior content frame the message text comes
			// straight from the done payload.
			msg.Content = p.Content
		}
		msg.StatusText = ""
		msg.IsStreaming = false

		if msg.Final == nil {
			done := model.FinalPayload{
				Diagnoses:     p.Diagnoses,
				SignalConfigs: p.SignalConfigs,
				Prompt:        p.Prompt,
			}
			final := msg.Partial
			if !done.IsEmpty() {
				// Last writer wins: the done payload replaces
				// whatever accumulated incrementally.
				final = done
			}
			if !final.IsEmpty() {
				msg.Final = &final
			}
		}
		msg.Partial = model.FinalPayload{}

		next := t.replace(i, msg)
		if p.ConversationID != 0 {
			next.ConversationID = p.ConversationID
		}
		return next, Note{}

	case stream.EventError:
		var p errorPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		// Advisory: surfaced to the user, but the message keeps
		// streaming unless the caller decides otherwise.
		text := p.Message
		if text == "" {
			text = "The platform reported an error."
		}
		return t, Note{Level: NoteError, Text: text}

	case stream.EventInterrupted:
		var p interruptedPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.IsStreaming = false
		msg.Incomplete = true
		msg.StoppedRound = p.Round
		msg.StatusText = ""
		return t.replace(i, msg), Note{}

	case stream.EventSignalConfig:
		var p model.SignalConfig
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.Partial.SignalConfigs = append(msg.Partial.SignalConfigs, p)
		return t.replace(i, msg), Note{}

	case stream.EventDiagnosis:
		var p model.DiagnosisCard
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return t, Note{}
		}
		msg := t.Messages[i].Clone()
		msg.Partial.Diagnoses = append(msg.Partial.Diagnoses, p)
		return t.replace(i, msg), Note{}

	default:
		// Unknown event types are no-ops.
		return t, Note{}
	}
}
