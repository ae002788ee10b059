// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one chat conversation against the platform.
//
// The Controller owns the transcript, starts streaming exchanges with
// optimistic local messages, folds decoded frames through the transcript
// reducer, and resolves failures by either reloading server history (when
// the conversation is persisted) or discarding the optimistic pair (when
// it is not). At most one exchange is in flight at a time.
package session
