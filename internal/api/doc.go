// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the perpdeck platform.
//
// The platform owns all business logic — order execution, PnL, AI
// reasoning, retention, backtest execution. This package only shapes
// requests and responses: JSON over REST for dashboard data and history,
// and a chunked streaming POST for the chat assistants, whose body is
// handed to package stream for decoding.
package api
