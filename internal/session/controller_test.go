// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/model"
)

// =============================================================================
// FAKE PLATFORM
// =============================================================================

// gatedBody serves canned bytes, then either returns a mid-stream error,
// blocks until the request context is cancelled, or hits EOF.
type gatedBody struct {
	ctx  context.Context
	data []byte
	off  int
	err  error
	hold bool
}

func (b *gatedBody) Read(p []byte) (int, error) {
	if b.off < len(b.data) {
		n := copy(p, b.data[b.off:])
		b.off += n
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	if b.hold {
		<-b.ctx.Done()
		return 0, b.ctx.Err()
	}
	return 0, io.EOF
}

func (b *gatedBody) Close() error { return nil }

type fakePlatform struct {
	mu sync.Mutex

	body    string
	midErr  error
	hold    bool
	openErr error

	reqs       []*api.ChatStreamRequest
	history    map[int64][]api.ServerMessage
	historyErr error
	deleted    []int64
}

func (f *fakePlatform) OpenChatStream(ctx context.Context, req *api.ChatStreamRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.reqs = append(f.reqs, &cp)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &gatedBody{ctx: ctx, data: []byte(f.body), err: f.midErr, hold: f.hold}, nil
}

func (f *fakePlatform) History(ctx context.Context, conversationID int64) ([]api.ServerMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[conversationID], nil
}

func (f *fakePlatform) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return nil, nil
}

func (f *fakePlatform) DeleteConversation(ctx context.Context, conversationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversationID)
	return nil
}

func (f *fakePlatform) lastRequest() *api.ChatStreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return nil
	}
	return f.reqs[len(f.reqs)-1]
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func nextEvent(t *testing.T, c *Controller) tea.Msg {
	t.Helper()
	got := make(chan tea.Msg, 1)
	go func() { got <- c.NextEvent()() }()
	select {
	case msg := <-got:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller event")
		return nil
	}
}

// waitTerminal drains update events until the exchange resolves.
func waitTerminal(t *testing.T, c *Controller) tea.Msg {
	t.Helper()
	for {
		switch msg := nextEvent(t, c).(type) {
		case StreamDoneMsg:
			return msg
		case StreamFailedMsg:
			return msg
		}
	}
}

const happyStream = "event: status\n" +
	"data: {\"text\":\"analyzing positions\"}\n" +
	"\n" +
	"event: content\n" +
	"data: {\"content\":\"BTC looks\"}\n" +
	"\n" +
	"event: content\n" +
	"data: {\"content\":\"BTC looks heavy here.\"}\n" +
	"\n" +
	"event: done\n" +
	"data: {\"content\":\"BTC looks heavy here.\",\"conversation_id\":42," +
	"\"diagnoses\":[{\"title\":\"Overleveraged\",\"severity\":\"warning\",\"summary\":\"cut size\"}]}\n"

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSendHappyPath(t *testing.T) {
	fake := &fakePlatform{body: happyStream}
	c := NewController(fake, api.AssistantDiagnose)

	if err := c.Send("  how do my positions look?  "); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := waitTerminal(t, c).(StreamDoneMsg)
	if !ok {
		t.Fatal("exchange did not finish with StreamDoneMsg")
	}
	if msg.ConversationID != 42 {
		t.Errorf("conversation id = %d, want 42", msg.ConversationID)
	}
	if msg.Rounds != 1 {
		t.Errorf("rounds = %d, want 1", msg.Rounds)
	}
	if msg.Interrupted {
		t.Error("clean done reported as interrupted")
	}

	tr := c.Transcript()
	if tr.Len() != 2 {
		t.Fatalf("transcript has %d messages, want 2", tr.Len())
	}
	user, reply := tr.Messages[0], tr.Messages[1]
	if user.Content != "how do my positions look?" {
		t.Errorf("user content = %q (input not normalized)", user.Content)
	}
	if user.ID.IsPersisted() || reply.ID.IsPersisted() {
		t.Error("optimistic ids must stay local")
	}
	if reply.ID != user.ID.Succ() {
		t.Error("placeholder id is not the successor of the user id")
	}
	if reply.IsStreaming {
		t.Error("reply still marked streaming after done")
	}
	if reply.Content != "BTC looks heavy here." {
		t.Errorf("reply content = %q", reply.Content)
	}
	if reply.Final == nil || len(reply.Final.Diagnoses) != 1 {
		t.Errorf("final payload = %+v", reply.Final)
	}
	if reply.Round != 0 {
		t.Errorf("reply round = %d, want 0", reply.Round)
	}

	req := fake.lastRequest()
	if req.ConversationID != 0 {
		t.Errorf("first exchange sent conversation id %d", req.ConversationID)
	}
	if req.Assistant != api.AssistantDiagnose {
		t.Errorf("assistant = %q", req.Assistant)
	}
	if c.Streaming() {
		t.Error("controller still streaming")
	}
}

func TestSendSecondExchangeCarriesConversationID(t *testing.T) {
	fake := &fakePlatform{body: happyStream}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitTerminal(t, c)

	if err := c.Send("second"); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	waitTerminal(t, c)

	req := fake.lastRequest()
	if req.ConversationID != 42 {
		t.Errorf("second exchange conversation id = %d, want 42", req.ConversationID)
	}
}

func TestSendWhileStreamingIsNoOp(t *testing.T) {
	fake := &fakePlatform{body: "event: content\ndata: {\"content\":\"hi\"}\n", hold: true}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("first"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	nextEvent(t, c) // content frame applied, stream now held open

	if err := c.Send("second"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Send err = %v, want ErrBusy", err)
	}
	if tr := c.Transcript(); tr.Len() != 2 {
		t.Errorf("rejected Send modified the transcript: %d messages", tr.Len())
	}

	c.Interrupt()
	waitTerminal(t, c)
}

func TestSendEmptyInput(t *testing.T) {
	c := NewController(&fakePlatform{}, api.AssistantChat)
	for _, input := range []string{"", "   ", "\x07\x00"} {
		if err := c.Send(input); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Send(%q) err = %v, want ErrEmptyInput", input, err)
		}
	}
}

// =============================================================================
// FAILURE RESOLUTION TESTS
// =============================================================================

func TestFailureBeforePersistenceDiscardsPair(t *testing.T) {
	fake := &fakePlatform{openErr: errors.New("connection refused")}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := waitTerminal(t, c).(StreamFailedMsg)
	if !ok {
		t.Fatal("expected StreamFailedMsg")
	}
	if msg.Reloaded {
		t.Error("unpersisted conversation should not reload")
	}
	if tr := c.Transcript(); tr.Len() != 0 {
		t.Errorf("optimistic pair not discarded: %d messages", tr.Len())
	}
	if c.Streaming() {
		t.Error("controller still streaming after failure")
	}
}

func TestFailureAfterPersistenceReloadsHistory(t *testing.T) {
	fake := &fakePlatform{
		midErr: errors.New("connection reset"),
		history: map[int64][]api.ServerMessage{
			7: {
				{ID: 100, Role: "user", Content: "hello"},
				{ID: 101, Role: "assistant", Content: "hi there",
					Diagnoses: []model.DiagnosisCard{{Title: "d", Severity: "info", Summary: "s"}}},
			},
		},
	}
	c := NewController(fake, api.AssistantChat)
	if err := c.SwitchConversation(context.Background(), 7); err != nil {
		t.Fatalf("SwitchConversation: %v", err)
	}

	if err := c.Send("and now?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := waitTerminal(t, c).(StreamFailedMsg)
	if !ok {
		t.Fatal("expected StreamFailedMsg")
	}
	if !msg.Reloaded {
		t.Error("persisted conversation should reload history")
	}

	tr := c.Transcript()
	if tr.Len() != 2 {
		t.Fatalf("transcript has %d messages, want the 2 from history", tr.Len())
	}
	if !tr.Messages[0].ID.IsPersisted() {
		t.Error("reloaded messages should carry persisted ids")
	}
	if tr.Messages[1].Round != 0 {
		t.Errorf("reloaded round = %d, want 0", tr.Messages[1].Round)
	}
}

func TestFailureWhenReloadAlsoFailsDiscardsPair(t *testing.T) {
	fake := &fakePlatform{
		midErr:     errors.New("connection reset"),
		historyErr: errors.New("still down"),
		history:    map[int64][]api.ServerMessage{},
	}
	c := NewController(fake, api.AssistantChat)
	c.mu.Lock()
	c.transcript.ConversationID = 7
	c.mu.Unlock()

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := waitTerminal(t, c).(StreamFailedMsg)
	if !ok {
		t.Fatal("expected StreamFailedMsg")
	}
	if msg.Reloaded {
		t.Error("failed reload must not report Reloaded")
	}
	if tr := c.Transcript(); tr.Len() != 0 {
		t.Errorf("optimistic pair not discarded: %d messages", tr.Len())
	}
}

func TestStreamEndingWithoutTerminalFrameFails(t *testing.T) {
	fake := &fakePlatform{body: "event: content\ndata: {\"content\":\"half a\"}\n"}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := waitTerminal(t, c).(StreamFailedMsg)
	if !ok {
		t.Fatal("EOF without terminal frame should fail the exchange")
	}
	if !errors.Is(msg.Err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", msg.Err)
	}
}

// =============================================================================
// INTERRUPT AND RESUME TESTS
// =============================================================================

func TestInterruptKeepsPartialContent(t *testing.T) {
	fake := &fakePlatform{body: "event: content\ndata: {\"content\":\"partial answer\"}\n", hold: true}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	nextEvent(t, c) // partial content applied

	c.Interrupt()

	msg, ok := waitTerminal(t, c).(StreamDoneMsg)
	if !ok {
		t.Fatal("local interrupt should resolve as StreamDoneMsg")
	}
	if !msg.Interrupted {
		t.Error("interrupt not reported")
	}

	tr := c.Transcript()
	if tr.Len() != 2 {
		t.Fatalf("transcript has %d messages, want 2", tr.Len())
	}
	reply := tr.Messages[1]
	if reply.Content != "partial answer" {
		t.Errorf("partial content lost: %q", reply.Content)
	}
	if !reply.Incomplete {
		t.Error("interrupted reply not marked incomplete")
	}
	if reply.IsStreaming {
		t.Error("interrupted reply still marked streaming")
	}
}

func TestResumeContinuesFromStoppedRound(t *testing.T) {
	fake := &fakePlatform{
		body: happyStream,
		history: map[int64][]api.ServerMessage{
			9: {
				{ID: 1, Role: "user", Content: "go"},
				{ID: 2, Role: "assistant", Content: "partial", Interrupted: true, StoppedRound: 3},
			},
		},
	}
	c := NewController(fake, api.AssistantChat)
	if err := c.SwitchConversation(context.Background(), 9); err != nil {
		t.Fatalf("SwitchConversation: %v", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitTerminal(t, c)

	req := fake.lastRequest()
	if req.ContinueFromRound != 3 {
		t.Errorf("continue_from_round = %d, want 3", req.ContinueFromRound)
	}
	if req.ConversationID != 9 {
		t.Errorf("conversation id = %d, want 9", req.ConversationID)
	}
	// Resume appends only a placeholder, never a user message.
	tr := c.Transcript()
	if tr.Len() != 3 {
		t.Errorf("transcript has %d messages, want 3", tr.Len())
	}
}

func TestResumeWithNothingInterrupted(t *testing.T) {
	c := NewController(&fakePlatform{}, api.AssistantChat)
	if err := c.Resume(); !errors.Is(err, ErrNothingToResume) {
		t.Errorf("Resume err = %v, want ErrNothingToResume", err)
	}
}

// =============================================================================
// CONVERSATION MANAGEMENT TESTS
// =============================================================================

func TestSwitchConversationZeroResets(t *testing.T) {
	fake := &fakePlatform{body: happyStream}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitTerminal(t, c)

	if err := c.SwitchConversation(context.Background(), 0); err != nil {
		t.Fatalf("SwitchConversation(0): %v", err)
	}
	tr := c.Transcript()
	if tr.Len() != 0 || tr.ConversationID != 0 {
		t.Errorf("fresh conversation not empty: %d messages, id %d", tr.Len(), tr.ConversationID)
	}
}

func TestDeleteActiveConversationResets(t *testing.T) {
	fake := &fakePlatform{
		history: map[int64][]api.ServerMessage{
			5: {{ID: 1, Role: "user", Content: "hi"}},
		},
	}
	c := NewController(fake, api.AssistantChat)
	if err := c.SwitchConversation(context.Background(), 5); err != nil {
		t.Fatalf("SwitchConversation: %v", err)
	}

	if err := c.DeleteConversation(context.Background(), 5); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if tr := c.Transcript(); tr.Len() != 0 {
		t.Errorf("deleting the active conversation did not reset: %d messages", tr.Len())
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != 5 {
		t.Errorf("deleted = %v", fake.deleted)
	}
}

// =============================================================================
// TELEMETRY AND DELIVERY TESTS
// =============================================================================

func TestDoneCarriesRoundTelemetry(t *testing.T) {
	body := "event: reasoning\n" +
		"data: {\"content\":\"checking funding\"}\n" +
		"\n" +
		"data: not json at all\n" +
		"\n" +
		"event: content\n" +
		"data: {\"content\":\"short it\"}\n" +
		"\n" +
		"event: done\n" +
		"data: {\"content\":\"short it\",\"conversation_id\":3}\n"
	fake := &fakePlatform{body: body}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("thoughts?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msg, ok := waitTerminal(t, c).(StreamDoneMsg)
	if !ok {
		t.Fatal("expected StreamDoneMsg")
	}
	if msg.Frames != 3 {
		t.Errorf("frames = %d, want 3", msg.Frames)
	}
	if msg.Dropped != 1 {
		t.Errorf("dropped = %d, want 1 (malformed data line)", msg.Dropped)
	}
	if msg.LogEntries != 1 {
		t.Errorf("log entries = %d, want 1", msg.LogEntries)
	}
	if msg.FirstEvent <= 0 {
		t.Errorf("first-event latency = %v, want > 0", msg.FirstEvent)
	}
	if msg.Elapsed < msg.FirstEvent {
		t.Errorf("elapsed %v shorter than first-event latency %v", msg.Elapsed, msg.FirstEvent)
	}
}

// RELIABILITY: a frame burst that overflows the event buffer must never
// swallow the terminal event.
func TestDoneDeliveredAfterFrameBurst(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("event: content\ndata: {\"content\":\"tick\"}\n\n")
	}
	b.WriteString("event: done\ndata: {\"content\":\"tick\",\"conversation_id\":8}\n")
	fake := &fakePlatform{body: b.String()}
	c := NewController(fake, api.AssistantChat)

	if err := c.Send("go"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// Let the exchange resolve before draining a single event, so the
	// update buffer fills and the excess updates get dropped.
	deadline := time.Now().Add(2 * time.Second)
	for c.Streaming() {
		if time.Now().After(deadline) {
			t.Fatal("stream did not resolve")
		}
		time.Sleep(time.Millisecond)
	}

	msg, ok := waitTerminal(t, c).(StreamDoneMsg)
	if !ok {
		t.Fatal("terminal event lost after frame burst")
	}
	if msg.Frames != 401 {
		t.Errorf("frames = %d, want 401", msg.Frames)
	}
	if msg.ConversationID != 8 {
		t.Errorf("conversation id = %d, want 8", msg.ConversationID)
	}
}

func TestHistoryMappingDropsUnknownSteps(t *testing.T) {
	msgs := []api.ServerMessage{
		{ID: 1, Role: "assistant", Content: "done", Round: 99,
			Steps: []api.ServerStep{
				{Kind: "reasoning", Text: "thinking"},
				{Kind: "tool_call", Tool: "fetch_klines", Args: `{"symbol":"BTC"}`},
				{Kind: "hologram", Text: "future step type"},
				{Kind: "tool_result", Tool: "fetch_klines", Output: "[...]"},
			}},
	}
	tr := fromHistory(3, msgs)
	m := tr.Messages[0]
	if len(m.Log) != 3 {
		t.Fatalf("log has %d entries, want 3 (unknown kind dropped)", len(m.Log))
	}
	if m.Log[0].Type != model.LogReasoning || m.Log[1].Type != model.LogToolCall || m.Log[2].Type != model.LogToolResult {
		t.Errorf("log order = %+v", m.Log)
	}
	if m.Round != -1 {
		t.Errorf("server round metadata leaked through: %d", m.Round)
	}
}
