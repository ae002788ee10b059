// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/model"
	"github.com/perpdeck/perpdeck-tui/internal/transcript"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter renders transcripts to JSON.
// NOTE: JSON exports always include complete message data regardless of
// options, so the output is a faithful record of the conversation.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// jsonDocument is the exported file shape.
type jsonDocument struct {
	Title          string        `json:"title"`
	ConversationID int64         `json:"conversation_id,omitempty"`
	ExportedAt     time.Time     `json:"exported_at"`
	Generator      string        `json:"generator"`
	Messages       []jsonMessage `json:"messages"`
}

// jsonMessage flattens the internal message for a stable export shape.
type jsonMessage struct {
	Role         string              `json:"role"`
	Content      string              `json:"content"`
	Timestamp    time.Time           `json:"timestamp,omitempty"`
	Round        int                 `json:"round,omitempty"`
	Incomplete   bool                `json:"incomplete,omitempty"`
	Log          []model.LogEntry    `json:"log,omitempty"`
	FinalPayload *model.FinalPayload `json:"results,omitempty"`
}

// Export renders the transcript to indented JSON.
func (e *JSONExporter) Export(title string, t transcript.Transcript) ([]byte, error) {
	if t.Len() == 0 {
		return nil, fmt.Errorf("transcript has no messages")
	}

	doc := jsonDocument{
		Title:          title,
		ConversationID: t.ConversationID,
		ExportedAt:     time.Now(),
		Generator:      "perpdeck",
		Messages:       make([]jsonMessage, 0, t.Len()),
	}

	for _, msg := range t.Messages {
		jm := jsonMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Timestamp:  msg.Timestamp,
			Incomplete: msg.Incomplete,
			Log:        msg.Log,
		}
		if msg.Round >= 0 {
			jm.Round = msg.Round + 1 // 1-based in exports
		}
		if msg.HasResults() {
			jm.FinalPayload = msg.Final
		}
		doc.Messages = append(doc.Messages, jm)
	}

	return json.MarshalIndent(doc, "", "  ")
}
