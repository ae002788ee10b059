// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the conversation transcript value and the pure
// reducer that folds decoded stream frames into it.
//
// Apply never mutates its input: the target message is cloned and the
// message slice is rebuilt around it, so callers may keep earlier transcript
// values (the TUI does, for cheap render diffing). Side effects are
// expressed as a returned Note that the caller routes to the notification
// surface.
package transcript
