// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/stream"
)

func frame(event, data string) stream.Frame {
	return stream.Frame{Event: event, Data: json.RawMessage(data)}
}

// newStreamingTranscript builds a transcript with an optimistic user
// message and a streaming assistant placeholder, the way Send does.
func newStreamingTranscript() (Transcript, model.MessageID) {
	userID := model.LocalID(1000)
	asstID := userID.Succ()

	t := New()
	t = t.Append(model.NewUserMessage(userID, "diagnose my scalper"))
	t = t.Append(model.NewAssistantPlaceholder(asstID))
	return t, asstID
}

// =============================================================================
// BASIC EVENT HANDLING
// =============================================================================

func TestApplyStatus(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, note := Apply(tr, id, frame(stream.EventStatus, `{"text":"loading positions"}`))

	if note.Level != NoteNone {
		t.Errorf("unexpected note: %+v", note)
	}
	if got := tr.Get(id).StatusText; got != "loading positions" {
		t.Errorf("status = %q", got)
	}
}

func TestApplyContentReplacesNotAppends(t *testing.T) {
	tr, id := newStreamingTranscript()
	for _, c := range []string{"a", "ab", "abc"} {
		tr, _ = Apply(tr, id, frame(stream.EventContent, `{"content":"`+c+`"}`))
	}

	if got := tr.Get(id).Content; got != "abc" {
		t.Errorf("content = %q, want %q (replace semantics)", got, "abc")
	}
	if got := tr.Get(id).StatusText; got != "" {
		t.Errorf("content frame should clear status, got %q", got)
	}
}

func TestApplyLogAppendOrdering(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventToolCall, `{"name":"x","arguments":"{}"}`))
	tr, _ = Apply(tr, id, frame(stream.EventToolResult, `{"name":"x","result":"ok"}`))
	tr, _ = Apply(tr, id, frame(stream.EventReasoning, `{"content":"y"}`))

	log := tr.Get(id).Log
	want := []model.LogEntryType{model.LogToolCall, model.LogToolResult, model.LogReasoning}
	if len(log) != len(want) {
		t.Fatalf("log has %d entries, want %d", len(log), len(want))
	}
	for i, typ := range want {
		if log[i].Type != typ {
			t.Errorf("log[%d].Type = %q, want %q", i, log[i].Type, typ)
		}
	}
}

func TestApplyToolEventsSetStatus(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventToolCall, `{"name":"fetch_klines","arguments":"{}"}`))
	if got := tr.Get(id).StatusText; got != "Calling fetch_klines..." {
		t.Errorf("status = %q", got)
	}
	tr, _ = Apply(tr, id, frame(stream.EventToolResult, `{"name":"fetch_klines","result":"{}"}`))
	if got := tr.Get(id).StatusText; got != "Got result from fetch_klines" {
		t.Errorf("status = %q", got)
	}
}

func TestApplyUnknownEventIsNoOp(t *testing.T) {
	tr, id := newStreamingTranscript()
	next, note := Apply(tr, id, frame("shiny_new_event", `{"anything":true}`))

	if !reflect.DeepEqual(next, tr) {
		t.Error("unknown event must not change the transcript")
	}
	if note.Level != NoteNone {
		t.Errorf("unknown event produced a note: %+v", note)
	}
}

func TestApplyUnknownTargetIsNoOp(t *testing.T) {
	tr, _ := newStreamingTranscript()
	next, _ := Apply(tr, model.LocalID(999999), frame(stream.EventContent, `{"content":"x"}`))
	if !reflect.DeepEqual(next, tr) {
		t.Error("frame for an unknown message must be dropped")
	}
}

func TestApplyMalformedPayloadIsNoOp(t *testing.T) {
	tr, id := newStreamingTranscript()
	next, _ := Apply(tr, id, frame(stream.EventContent, `{"content":123}`))
	if next.Get(id).Content != "" {
		t.Error("unparseable payload must not partially apply")
	}
}

// =============================================================================
// DETERMINISM AND IMMUTABILITY
// =============================================================================

func TestApplyIsDeterministic(t *testing.T) {
	tr, id := newStreamingTranscript()
	f := frame(stream.EventReasoning, `{"content":"check funding"}`)

	a, _ := Apply(tr, id, f)
	b, _ := Apply(tr, id, f)

	if !reflect.DeepEqual(a, b) {
		t.Error("same inputs must yield structurally equal transcripts")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	tr, id := newStreamingTranscript()
	before := tr.Get(id).Clone()

	Apply(tr, id, frame(stream.EventContent, `{"content":"changed"}`))

	if !reflect.DeepEqual(tr.Get(id), before) {
		t.Error("Apply mutated its input transcript")
	}
}

// =============================================================================
// TERMINAL EVENTS
// =============================================================================

func TestApplyDoneSetsContentAndConversation(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventDone, `{"content":"hi","conversation_id":5}`))

	msg := tr.Get(id)
	if msg.Content != "hi" {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.IsStreaming {
		t.Error("done must stop streaming")
	}
	if tr.ConversationID != 5 {
		t.Errorf("conversation id = %d, want 5", tr.ConversationID)
	}
}

func TestApplyDoneKeepsStreamedContentWhenPayloadEmpty(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventContent, `{"content":"streamed text"}`))
	tr, _ = Apply(tr, id, frame(stream.EventDone, `{"conversation_id":5}`))

	if got := tr.Get(id).Content; got != "streamed text" {
		t.Errorf("content = %q, want streamed text preserved", got)
	}
}

func TestApplyDonePayloadOverridesAccumulated(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventSignalConfig, `{"name":"sc1","symbol":"BTCUSDT"}`))
	tr, _ = Apply(tr, id, frame(stream.EventSignalConfig, `{"name":"sc2","symbol":"ETHUSDT"}`))
	tr, _ = Apply(tr, id, frame(stream.EventDone,
		`{"content":"done","signal_configs":[{"name":"authoritative","symbol":"SOLUSDT"}]}`))

	msg := tr.Get(id)
	if msg.Final == nil {
		t.Fatal("final payload missing")
	}
	// Last writer wins: the done payload replaces the accumulated list.
	if len(msg.Final.SignalConfigs) != 1 || msg.Final.SignalConfigs[0].Name != "authoritative" {
		t.Errorf("final configs = %+v, want the done payload only", msg.Final.SignalConfigs)
	}
	if !msg.Partial.IsEmpty() {
		t.Error("partial accumulator should be cleared after done")
	}
}

func TestApplyDonePromotesAccumulatedWhenPayloadEmpty(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventDiagnosis, `{"title":"overleveraged","severity":"warning"}`))
	tr, _ = Apply(tr, id, frame(stream.EventDone, `{"content":"done"}`))

	msg := tr.Get(id)
	if msg.Final == nil || len(msg.Final.Diagnoses) != 1 {
		t.Fatalf("accumulated diagnoses should become the final payload, got %+v", msg.Final)
	}
	if msg.Final.Diagnoses[0].Title != "overleveraged" {
		t.Errorf("diagnosis = %+v", msg.Final.Diagnoses[0])
	}
}

func TestApplyInterrupted(t *testing.T) {
	tr, id := newStreamingTranscript()
	tr, _ = Apply(tr, id, frame(stream.EventContent, `{"content":"partial"}`))
	tr, _ = Apply(tr, id, frame(stream.EventInterrupted, `{"round":2}`))

	msg := tr.Get(id)
	if msg.IsStreaming {
		t.Error("interrupted must stop streaming")
	}
	if !msg.Incomplete {
		t.Error("interrupted must mark the message incomplete")
	}
	if msg.StoppedRound != 2 {
		t.Errorf("stopped round = %d, want 2", msg.StoppedRound)
	}
	if msg.Content != "partial" {
		t.Errorf("interrupted must keep partial content, got %q", msg.Content)
	}
}

func TestApplyErrorIsAdvisory(t *testing.T) {
	tr, id := newStreamingTranscript()
	next, note := Apply(tr, id, frame(stream.EventError, `{"message":"rate limited upstream"}`))

	if note.Level != NoteError || note.Text != "rate limited upstream" {
		t.Errorf("note = %+v", note)
	}
	// The message is untouched: the caller decides whether to unwind.
	if !next.Get(id).IsStreaming {
		t.Error("error event must not terminate the message by itself")
	}
}

// =============================================================================
// TRANSCRIPT INVARIANTS
// =============================================================================

func TestSingleStreamingMessage(t *testing.T) {
	tr, id := newStreamingTranscript()
	if s := tr.Streaming(); s == nil || s.ID != id {
		t.Fatal("placeholder should be the streaming message")
	}

	tr, _ = Apply(tr, id, frame(stream.EventDone, `{"content":"x","conversation_id":1}`))
	if tr.Streaming() != nil {
		t.Error("no message should stream after done")
	}
}

func TestRemove(t *testing.T) {
	tr, id := newStreamingTranscript()
	userID := tr.Messages[0].ID

	tr = tr.Remove(id).Remove(userID)
	if tr.Len() != 0 {
		t.Errorf("len = %d after removing both, want 0", tr.Len())
	}
}

// =============================================================================
// ROUND RECOMPUTATION
// =============================================================================

func TestAssignRounds(t *testing.T) {
	withResults := func(id int64) *model.Message {
		m := model.NewAssistantPlaceholder(model.PersistedID(id))
		m.IsStreaming = false
		m.Final = &model.FinalPayload{Diagnoses: []model.DiagnosisCard{{Title: "t"}}}
		// Server-sent round metadata is deliberately wrong here; it must
		// be ignored.
		m.Round = 7
		return m
	}

	tr := New()
	tr = tr.Append(withResults(1))
	tr = tr.Append(model.NewUserMessage(model.PersistedID(2), "follow-up"))
	tr = tr.Append(withResults(3))

	tr, rounds := AssignRounds(tr)
	if rounds != 2 {
		t.Fatalf("rounds = %d, want 2", rounds)
	}
	if tr.Messages[0].Round != 0 {
		t.Errorf("msg1 round = %d, want 0", tr.Messages[0].Round)
	}
	if tr.Messages[1].Round != -1 {
		t.Errorf("user message round = %d, want -1", tr.Messages[1].Round)
	}
	if tr.Messages[2].Round != 1 {
		t.Errorf("msg3 round = %d, want 1", tr.Messages[2].Round)
	}
}
