// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI command surface of perpdeck:
// argument parsing, the line-oriented chat REPL, one-shot queries, and
// credential management. The TUI remains the default command; everything
// here exists for scripting and for terminals where a full-screen
// program is unwelcome.
package cli
