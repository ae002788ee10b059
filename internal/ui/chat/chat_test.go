// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/config"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/session"
	"github.com/perpdeck/perpdeck-tui/internal/store"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
	"github.com/perpdeck/perpdeck-tui/internal/ui/styles"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

// stubPlatform satisfies session.Platform without any network.
type stubPlatform struct {
	conversations []model.Conversation
	listErr       error
}

func (s *stubPlatform) OpenChatStream(ctx context.Context, req *api.ChatStreamRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (s *stubPlatform) History(ctx context.Context, conversationID int64) ([]api.ServerMessage, error) {
	return nil, nil
}

func (s *stubPlatform) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return s.conversations, s.listErr
}

func (s *stubPlatform) DeleteConversation(ctx context.Context, conversationID int64) error {
	return nil
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	cfg := config.Default()
	ctrl := session.NewController(&stubPlatform{}, "chat")
	m := New(cfg, ctrl, styles.NewThemeWithPreference("dark"))

	// Simulate the initial window size so the viewport exists.
	m.handleResize(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// =============================================================================
// COMMAND PARSING TESTS
// =============================================================================

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantOK   bool
		wantName string
		wantArgs int
	}{
		{"/new", true, "new", 0},
		{"/switch 42", true, "switch", 1},
		{"  /EXPORT json  ", true, "export", 1},
		{"what is funding?", false, "", 0},
		{"/", false, "", 0},
		{"", false, "", 0},
	}

	for _, tt := range tests {
		cmd, ok := parseCommand(tt.input)
		if ok != tt.wantOK {
			t.Errorf("parseCommand(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if cmd.name != tt.wantName {
			t.Errorf("parseCommand(%q) name = %q, want %q", tt.input, cmd.name, tt.wantName)
		}
		if len(cmd.args) != tt.wantArgs {
			t.Errorf("parseCommand(%q) args = %d, want %d", tt.input, len(cmd.args), tt.wantArgs)
		}
	}
}

func TestAssistantCommand(t *testing.T) {
	m := newTestModel(t)

	m.runCommand(command{name: "assistant", args: []string{"diagnose"}})
	if m.controller.Assistant() != "diagnose" {
		t.Error("assistant command should update the controller")
	}
	if m.statusBar.Assistant != "diagnose" {
		t.Error("assistant command should update the status bar")
	}
}

func TestAssistantCommandRejectsUnknownMode(t *testing.T) {
	m := newTestModel(t)

	m.runCommand(command{name: "assistant", args: []string{"yolo"}})
	if m.controller.Assistant() != "chat" {
		t.Error("invalid assistant mode should not change the controller")
	}
	if !m.toasts.HasToasts() {
		t.Error("invalid assistant mode should warn")
	}
}

func TestUnknownCommandWarns(t *testing.T) {
	m := newTestModel(t)
	m.runCommand(command{name: "frobnicate"})
	if !m.toasts.HasToasts() {
		t.Error("unknown command should produce a toast")
	}
}

func TestSwitchCommandValidatesID(t *testing.T) {
	m := newTestModel(t)
	if cmd := m.runCommand(command{name: "switch", args: []string{"abc"}}); cmd != nil {
		t.Error("invalid id should resolve synchronously with a warning")
	}
	if !m.toasts.HasToasts() {
		t.Error("invalid id should warn")
	}
}

// =============================================================================
// RENDERING TESTS
// =============================================================================

func TestRenderUserMessage(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewUserMessage(model.NewLocalID(), "check my BTC exposure")

	out := m.renderUserMessage(msg)
	if !strings.Contains(out, "You") {
		t.Error("user message missing role label")
	}
	if !strings.Contains(out, "check my BTC exposure") {
		t.Error("user message missing content")
	}
}

func TestRenderAssistantMessageStreaming(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewAssistantPlaceholder(model.NewLocalID())
	msg.Content = "Looking at the funding history"
	msg.IsStreaming = true

	out := m.renderAssistantMessage(msg, true)
	if !strings.Contains(out, "Looking at the funding history") {
		t.Error("streaming assistant message missing partial content")
	}
}

func TestRenderAssistantMessageInterrupted(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewAssistantPlaceholder(model.NewLocalID())
	msg.Content = "The position is"
	msg.IsStreaming = false
	msg.Incomplete = true
	msg.StoppedRound = 0

	out := m.renderAssistantMessage(msg, true)
	if !strings.Contains(out, "stopped before completing") {
		t.Error("interrupted message should carry the stopped marker")
	}
	if !strings.Contains(out, "C-r") {
		t.Error("last interrupted message should hint at resume")
	}
}

func TestRenderAssistantMessageResults(t *testing.T) {
	m := newTestModel(t)
	msg := model.NewAssistantPlaceholder(model.NewLocalID())
	msg.IsStreaming = false
	msg.Final = &model.FinalPayload{
		Diagnoses: []model.DiagnosisCard{
			{Title: "Funding drag", Severity: "warning", Symbol: "ETH", Summary: "Paying 0.05% per 8h."},
		},
	}

	out := m.renderAssistantMessage(msg, true)
	if !strings.Contains(out, "Funding drag") {
		t.Error("assistant message should render diagnosis cards")
	}
}

func TestEmptyTranscriptShowsWelcome(t *testing.T) {
	m := newTestModel(t)
	out := m.renderTranscript()
	if !strings.Contains(out, "perpdeck") {
		t.Error("empty transcript should show the welcome box")
	}
}

func TestViewSmoke(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	if out == "" {
		t.Fatal("view should render")
	}
	if !strings.Contains(out, ">") {
		t.Error("view should include the input prompt")
	}
}

// =============================================================================
// UPDATE LOOP TESTS
// =============================================================================

func TestStreamFailedShowsToast(t *testing.T) {
	m := newTestModel(t)
	m.state = StateStreaming

	m.handleStreamFailed(session.StreamFailedMsg{Err: io.ErrUnexpectedEOF, Reloaded: false})
	if m.state != StateReady {
		t.Error("failure should return the view to ready state")
	}
	if !m.toasts.HasToasts() {
		t.Error("failure should surface a toast")
	}
}

func TestStreamDoneInterruptedStatus(t *testing.T) {
	m := newTestModel(t)
	m.state = StateStreaming

	m.handleStreamDone(session.StreamDoneMsg{Interrupted: true, Frames: 3, Elapsed: time.Second})
	if m.state != StateReady {
		t.Error("done should return the view to ready state")
	}
}

// captureRecorder keeps the last record handed to it.
type captureRecorder struct {
	rec store.RoundRecord
}

func (c *captureRecorder) RecordRound(ctx context.Context, rec store.RoundRecord) error {
	c.rec = rec
	return nil
}

func TestRecordRoundCarriesStreamCounters(t *testing.T) {
	m := newTestModel(t)
	tracker := &captureRecorder{}
	m.SetRecorder(tracker)

	cmd := m.recordRoundCmd(session.StreamDoneMsg{
		ConversationID: 4,
		Frames:         12,
		Dropped:        2,
		LogEntries:     3,
		FirstEvent:     150 * time.Millisecond,
		Elapsed:        2 * time.Second,
	})
	if cmd == nil {
		t.Fatal("recorder wired but no command returned")
	}
	cmd()

	r := tracker.rec
	if r.Frames != 12 || r.Dropped != 2 || r.LogEntries != 3 {
		t.Errorf("record counters = %+v", r)
	}
	if r.FirstEvent != 150*time.Millisecond || r.Duration != 2*time.Second {
		t.Errorf("record timings = %+v", r)
	}
	if r.ConversationID != 4 {
		t.Errorf("conversation id = %d, want 4", r.ConversationID)
	}
}

func TestConversationPickerNavigation(t *testing.T) {
	m := newTestModel(t)
	m.handleConversations(conversationsMsg{items: []model.Conversation{
		{ID: 1, Title: "alpha"},
		{ID: 2, Title: "beta"},
	}})
	if m.picker == nil {
		t.Fatal("picker should open")
	}

	m.handlePickerKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if m.picker.index != 1 {
		t.Error("j should move selection down")
	}
	m.handlePickerKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if m.picker.index != 0 {
		t.Error("k should move selection up")
	}

	m.handlePickerKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.picker != nil {
		t.Error("esc should close the picker")
	}
}

// =============================================================================
// PROMPT LIBRARY
// =============================================================================

func TestSavePromptWithoutStoreWarns(t *testing.T) {
	m := newTestModel(t)
	if cmd := m.savePromptCmd(); cmd != nil {
		t.Error("save without a store should resolve synchronously")
	}
	if !m.toasts.HasToasts() {
		t.Error("save without a store should surface a toast")
	}
}

func TestLatestPromptPrefersFinalPayload(t *testing.T) {
	tr := transcript.New()
	id := model.NewLocalID()
	older := model.NewAssistantPlaceholder(id)
	older.Partial.Prompt = &model.GeneratedPrompt{Title: "partial", Body: "a"}
	newer := model.NewAssistantPlaceholder(id.Succ())
	newer.Final = &model.FinalPayload{Prompt: &model.GeneratedPrompt{Title: "final", Body: "b"}}
	tr = tr.Append(older)
	tr = tr.Append(newer)

	got := latestPrompt(tr)
	if got == nil || got.Title != "final" {
		t.Fatalf("latestPrompt = %+v, want the newest final payload", got)
	}
}

func TestPromptOverlayInsertsBody(t *testing.T) {
	m := newTestModel(t)
	m.promptLib = &promptPicker{items: []store.SavedPrompt{
		{ID: 1, Title: "funding short", Body: "short when funding exceeds 0.1%"},
	}}

	m.handlePromptKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.promptLib != nil {
		t.Error("enter should close the overlay")
	}
	if m.input.Value() != "short when funding exceeds 0.1%" {
		t.Errorf("input = %q", m.input.Value())
	}
}
