// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/stream"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned when an exchange is already streaming. Send is a
	// no-op in that state; the caller keeps the input intact.
	ErrBusy = errors.New("session: exchange already in flight")

	// ErrEmptyInput is returned when the normalized input is empty.
	ErrEmptyInput = errors.New("session: empty input")

	// ErrNothingToResume is returned by Resume when no interrupted reply
	// exists.
	ErrNothingToResume = errors.New("session: nothing to resume")
)

// historyReloadTimeout bounds the history refetch after a mid-stream
// failure. The reload runs on a fresh context because the stream context
// is usually already dead.
const historyReloadTimeout = 10 * time.Second

// =============================================================================
// PLATFORM INTERFACE
// =============================================================================

// Platform is the slice of the API client the controller needs. *api.Client
// satisfies it; tests substitute a fake.
type Platform interface {
	OpenChatStream(ctx context.Context, req *api.ChatStreamRequest) (io.ReadCloser, error)
	History(ctx context.Context, conversationID int64) ([]api.ServerMessage, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID int64) error
}

// =============================================================================
// EVENTS
// =============================================================================

// StreamUpdateMsg is emitted after each frame is folded into the
// transcript. Note is non-empty for advisory error events.
type StreamUpdateMsg struct {
	Note transcript.Note
}

// StreamDoneMsg is emitted when an exchange ends on a terminal frame.
type StreamDoneMsg struct {
	ConversationID int64
	Rounds         int
	Interrupted    bool
	Frames         int
	Dropped        int           // malformed frames discarded by the decoder
	FirstEvent     time.Duration // latency from send to the first decoded frame
	LogEntries     int           // reasoning/tool entries on the finished reply
	Elapsed        time.Duration
}

// StreamFailedMsg is emitted when an exchange fails before its terminal
// frame. Reloaded reports whether the transcript was replaced with fresh
// server history; false means the optimistic pair was discarded.
type StreamFailedMsg struct {
	Err      error
	Reloaded bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the transcript of the active conversation and the single
// in-flight exchange against the platform.
type Controller struct {
	mu sync.Mutex

	client    Platform
	assistant string

	transcript transcript.Transcript
	rounds     int

	streaming   bool
	streamStart time.Time
	userID      model.MessageID
	replyID     model.MessageID
	cancel      context.CancelFunc

	// RELIABILITY: events is drained by the UI event loop. Update emits
	// never block the stream goroutine; terminal emits block until
	// delivered so an exchange always resolves on screen.
	events chan tea.Msg
}

// NewController creates a controller bound to one platform assistant.
func NewController(client Platform, assistant string) *Controller {
	return &Controller{
		client:    client,
		assistant: assistant,
		events:    make(chan tea.Msg, 256),
	}
}

// NextEvent returns a command that delivers the controller's next event to
// the program loop. Re-arm it after every delivery.
func (c *Controller) NextEvent() tea.Cmd {
	return func() tea.Msg {
		return <-c.events
	}
}

// emit delivers an update event without blocking. Updates coalesce: the
// UI re-reads the full transcript snapshot on every delivery, so an
// update dropped on overflow is subsumed by the next one.
func (c *Controller) emit(msg tea.Msg) {
	select {
	case c.events <- msg:
	default:
	}
}

// emitFinal delivers a terminal event, blocking until the UI takes it.
// The stream goroutine has nothing left to do at that point, and the UI
// re-arms NextEvent after every delivery, so the send always completes.
func (c *Controller) emitFinal(msg tea.Msg) {
	c.events <- msg
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Transcript returns the current transcript value. Messages it references
// are never mutated in place, so the snapshot stays stable while newer
// frames arrive.
func (c *Controller) Transcript() transcript.Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// ConversationID returns the persisted conversation id, 0 if none yet.
func (c *Controller) ConversationID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.ConversationID
}

// Streaming reports whether an exchange is in flight.
func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Rounds returns the number of result-bearing exchanges in the transcript.
func (c *Controller) Rounds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rounds
}

// Assistant returns the assistant this controller is bound to.
func (c *Controller) Assistant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assistant
}

// SetAssistant rebinds the controller. Takes effect on the next exchange.
func (c *Controller) SetAssistant(assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assistant = assistant
}

// =============================================================================
// SENDING
// =============================================================================

// Send starts a streaming exchange: the user message and an assistant
// placeholder are appended optimistically under fresh local ids, then the
// stream is consumed on a background goroutine. Returns ErrBusy while a
// previous exchange is still streaming.
func (c *Controller) Send(content string) error {
	normalized := util.NormalizeInput(content)
	if normalized == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrBusy
	}

	userID := model.NewLocalID()
	replyID := userID.Succ()

	c.transcript = c.transcript.
		Append(model.NewUserMessage(userID, normalized)).
		Append(model.NewAssistantPlaceholder(replyID))

	req := &api.ChatStreamRequest{
		ConversationID: c.transcript.ConversationID,
		Assistant:      c.assistant,
		Content:        normalized,
	}
	c.beginStream(userID, replyID)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, req, replyID)
	return nil
}

// Resume continues the most recent interrupted reply. A fresh assistant
// placeholder is appended; there is no new user message.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrBusy
	}

	var stopped *model.Message
	for i := len(c.transcript.Messages) - 1; i >= 0; i-- {
		if m := c.transcript.Messages[i]; m.Role == model.RoleAssistant && m.Incomplete {
			stopped = m
			break
		}
	}
	if stopped == nil || c.transcript.ConversationID == 0 {
		c.mu.Unlock()
		return ErrNothingToResume
	}

	replyID := model.NewLocalID()
	c.transcript = c.transcript.Append(model.NewAssistantPlaceholder(replyID))

	req := &api.ChatStreamRequest{
		ConversationID:    c.transcript.ConversationID,
		Assistant:         c.assistant,
		ContinueFromRound: stopped.StoppedRound,
	}
	c.beginStream(model.MessageID{}, replyID)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, req, replyID)
	return nil
}

// beginStream records in-flight state. Caller holds c.mu.
func (c *Controller) beginStream(userID, replyID model.MessageID) {
	c.streaming = true
	c.streamStart = time.Now()
	c.userID = userID
	c.replyID = replyID
}

// Interrupt cancels the in-flight exchange locally. The placeholder is
// marked incomplete; no server round-trip happens.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// STREAM GOROUTINE
// =============================================================================

// roundStats carries per-exchange counters from the stream goroutine to
// the terminal event.
type roundStats struct {
	frames     int
	dropped    int
	firstEvent time.Duration
}

func (c *Controller) run(ctx context.Context, req *api.ChatStreamRequest, replyID model.MessageID) {
	c.mu.Lock()
	start := c.streamStart
	c.mu.Unlock()

	body, err := c.client.OpenChatStream(ctx, req)
	if err != nil {
		c.finishFailure(replyID, err, roundStats{})
		return
	}
	defer body.Close()

	var st roundStats
	terminal := ""
	d := stream.NewDecoder()
	err = d.Scan(ctx, body, func(f stream.Frame) error {
		if st.frames == 0 {
			st.firstEvent = time.Since(start)
		}
		st.frames++
		c.applyFrame(replyID, f)
		if f.IsTerminal() {
			terminal = f.Event
			return stream.ErrStop
		}
		return nil
	})
	st.dropped = d.Dropped

	switch {
	case err != nil:
		c.finishFailure(replyID, err, st)
	case terminal == "":
		// Connection closed without a terminal frame.
		c.finishFailure(replyID, io.ErrUnexpectedEOF, st)
	default:
		c.finishSuccess(replyID, terminal == stream.EventInterrupted, st)
	}
}

func (c *Controller) applyFrame(replyID model.MessageID, f stream.Frame) {
	c.mu.Lock()
	next, note := transcript.Apply(c.transcript, replyID, f)
	c.transcript = next
	c.mu.Unlock()

	c.emit(StreamUpdateMsg{Note: note})
}

func (c *Controller) finishSuccess(replyID model.MessageID, interrupted bool, st roundStats) {
	c.mu.Lock()
	c.streaming = false
	c.cancel = nil
	c.transcript, c.rounds = transcript.AssignRounds(c.transcript)
	msg := StreamDoneMsg{
		ConversationID: c.transcript.ConversationID,
		Rounds:         c.rounds,
		Interrupted:    interrupted,
		Frames:         st.frames,
		Dropped:        st.dropped,
		FirstEvent:     st.firstEvent,
		LogEntries:     c.replyLogLen(replyID),
		Elapsed:        time.Since(c.streamStart),
	}
	c.mu.Unlock()

	c.emitFinal(msg)
}

// replyLogLen counts the activity-log entries on the reply. Caller holds
// c.mu.
func (c *Controller) replyLogLen(replyID model.MessageID) int {
	if m := c.transcript.Get(replyID); m != nil {
		return len(m.Log)
	}
	return 0
}

// finishFailure resolves a failed exchange. A local cancellation keeps the
// optimistic messages and marks the placeholder interrupted. Any other
// failure either reloads history (conversation persisted server-side, so
// the server's record wins) or discards the optimistic pair (nothing was
// ever persisted).
func (c *Controller) finishFailure(replyID model.MessageID, cause error, st roundStats) {
	if errors.Is(cause, context.Canceled) {
		c.markStopped(replyID, st)
		return
	}

	c.mu.Lock()
	c.streaming = false
	c.cancel = nil
	convID := c.transcript.ConversationID
	userID := c.userID
	c.mu.Unlock()

	if convID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), historyReloadTimeout)
		defer cancel()
		if msgs, err := c.client.History(ctx, convID); err == nil {
			c.mu.Lock()
			c.transcript = fromHistory(convID, msgs)
			c.transcript, c.rounds = transcript.AssignRounds(c.transcript)
			c.mu.Unlock()
			c.emitFinal(StreamFailedMsg{Err: cause, Reloaded: true})
			return
		}
		// Reload failed too; fall back to discarding so the transcript
		// never shows a reply the server may not have.
	}

	c.mu.Lock()
	c.transcript = c.transcript.Remove(replyID)
	if !userID.IsZero() {
		c.transcript = c.transcript.Remove(userID)
	}
	c.transcript, c.rounds = transcript.AssignRounds(c.transcript)
	c.mu.Unlock()

	c.emitFinal(StreamFailedMsg{Err: cause, Reloaded: false})
}

// markStopped finalizes a locally cancelled exchange through the reducer's
// interrupted path, so the placeholder keeps whatever content had arrived.
func (c *Controller) markStopped(replyID model.MessageID, st roundStats) {
	c.mu.Lock()
	c.streaming = false
	c.cancel = nil
	f := stream.Frame{Event: stream.EventInterrupted, Data: []byte(`{}`)}
	c.transcript, _ = transcript.Apply(c.transcript, replyID, f)
	c.transcript, c.rounds = transcript.AssignRounds(c.transcript)
	msg := StreamDoneMsg{
		ConversationID: c.transcript.ConversationID,
		Rounds:         c.rounds,
		Interrupted:    true,
		Frames:         st.frames,
		Dropped:        st.dropped,
		FirstEvent:     st.firstEvent,
		LogEntries:     c.replyLogLen(replyID),
		Elapsed:        time.Since(c.streamStart),
	}
	c.mu.Unlock()

	c.emitFinal(msg)
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// Conversations lists the user's conversations.
func (c *Controller) Conversations(ctx context.Context) ([]model.Conversation, error) {
	return c.client.ListConversations(ctx)
}

// SwitchConversation replaces the transcript with the server history of
// the given conversation. A 0 id starts a fresh unpersisted conversation.
// An in-flight exchange is cancelled first.
func (c *Controller) SwitchConversation(ctx context.Context, conversationID int64) error {
	c.Interrupt()

	if conversationID == 0 {
		c.mu.Lock()
		c.transcript = transcript.New()
		c.rounds = 0
		c.mu.Unlock()
		return nil
	}

	msgs, err := c.client.History(ctx, conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.transcript = fromHistory(conversationID, msgs)
	c.transcript, c.rounds = transcript.AssignRounds(c.transcript)
	c.mu.Unlock()
	return nil
}

// DeleteConversation removes a conversation server-side. Deleting the
// active conversation resets to a fresh one.
func (c *Controller) DeleteConversation(ctx context.Context, conversationID int64) error {
	if err := c.client.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.transcript.ConversationID == conversationID {
		c.transcript = transcript.New()
		c.rounds = 0
	}
	c.mu.Unlock()
	return nil
}
