// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the perpdeck TUI:
// the status bar, toast notifications, loading spinner, syntax-highlighted
// code blocks, assistant result cards, and dashboard tables.
package components
