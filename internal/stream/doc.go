// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the platform's chat event stream.
//
// The wire format is a newline-delimited variant of text/event-stream: a
// record is an optional "event: <type>" line followed by a "data: <json>"
// line. The decoder is incremental — callers feed it arbitrary byte chunks
// and receive complete frames — and decoding is invariant under chunking:
// splitting the same bytes differently never changes the frame sequence.
package stream
