// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/perpdeck/perpdeck-tui/internal/util"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is server-owned metadata for one chat thread. The platform
// creates it lazily on the first successful exchange; until then the client
// holds no Conversation at all (a nil reference means "not yet persisted").
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle returns the title truncated for list rendering, falling back
// to a placeholder for untitled threads.
func (c *Conversation) DisplayTitle(maxRunes int) string {
	title := util.FirstLine(c.Title)
	if title == "" {
		title = "Untitled conversation"
	}
	return util.TruncateRunes(title, maxRunes)
}
