// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the client-side data structures for conversations,
// messages, the per-message activity log, and the structured payloads the
// platform attaches to completed assistant replies (diagnosis cards, signal
// configs, generated prompts).
//
// Everything here is a plain value type. Stream folding lives in package
// transcript; network shapes live in package api.
package model
