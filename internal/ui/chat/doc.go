// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the perpdeck TUI.
//
// The view owns the Bubble Tea side of a conversation: it feeds input to the
// session controller, consumes its stream events, and renders the transcript
// with markdown, syntax-highlighted code, activity logs, and structured
// result cards. Redraws during streaming are coalesced at a capped frame
// rate so fast streams do not saturate the terminal.
package chat
