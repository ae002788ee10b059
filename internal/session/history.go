// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/perpdeck/perpdeck-tui/internal/api"
	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// =============================================================================
// HISTORY MAPPING
// =============================================================================

// fromHistory builds a transcript from the server's persisted messages.
// Server ids become persisted MessageIDs; the server's round metadata is
// ignored because round indices are recomputed from message order.
func fromHistory(conversationID int64, msgs []api.ServerMessage) transcript.Transcript {
	t := transcript.Transcript{ConversationID: conversationID}
	if len(msgs) == 0 {
		return t
	}

	messages := make([]*model.Message, 0, len(msgs))
	for i := range msgs {
		messages = append(messages, fromServer(&msgs[i]))
	}
	t.Messages = messages
	return t
}

// fromServer maps one persisted message onto the client model.
func fromServer(sm *api.ServerMessage) *model.Message {
	m := &model.Message{
		ID:           model.PersistedID(sm.ID),
		Role:         serverRole(sm.Role),
		Content:      sm.Content,
		Timestamp:    sm.CreatedAt,
		Incomplete:   sm.Interrupted,
		StoppedRound: sm.StoppedRound,
		Round:        -1,
	}

	if len(sm.Steps) > 0 {
		m.Log = make([]model.LogEntry, 0, len(sm.Steps))
		for _, step := range sm.Steps {
			if entry, ok := serverStep(step); ok {
				m.Log = append(m.Log, entry)
			}
		}
	}

	final := model.FinalPayload{
		Diagnoses:     sm.Diagnoses,
		SignalConfigs: sm.SignalConfigs,
		Prompt:        sm.GeneratedPrompt,
	}
	if !final.IsEmpty() {
		m.Final = &final
	}

	return m
}

func serverRole(role string) model.Role {
	if role == string(model.RoleAssistant) {
		return model.RoleAssistant
	}
	return model.RoleUser
}

// serverStep maps one activity-log step. Unknown kinds are dropped so new
// server step types never break history loading.
func serverStep(step api.ServerStep) (model.LogEntry, bool) {
	switch step.Kind {
	case "reasoning":
		return model.LogEntry{Type: model.LogReasoning, Content: step.Text}, true
	case "tool_call":
		return model.LogEntry{Type: model.LogToolCall, Name: step.Tool, Arguments: step.Args}, true
	case "tool_result":
		return model.LogEntry{Type: model.LogToolResult, Name: step.Tool, Result: step.Output}, true
	default:
		return model.LogEntry{}, false
	}
}
