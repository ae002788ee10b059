// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
)

// =============================================================================
// DECODER
// =============================================================================

var (
	eventPrefix = []byte("event:")
	dataPrefix  = []byte("data:")
)

// Decoder assembles frames from an incremental byte stream.
//
// The buffer is kept as raw bytes and only split on '\n', so a multi-byte
// UTF-8 sequence straddling a chunk boundary is never decoded early.
//
// Not safe for concurrent use; one decoder per stream.
type Decoder struct {
	buf     []byte
	pending string // event type awaiting its data line

	// Dropped counts data lines discarded for malformed JSON.
	Dropped int

	// OnDrop, if set, is called with each discarded data line.
	// Used to route malformed-frame noise to the debug log.
	OnDrop func(line []byte)
}

// NewDecoder returns a decoder ready to receive chunks.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns all frames completed by it, in order.
// A partial trailing line is held back until a later chunk finishes it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		// Reslicing keeps the tail; the processed prefix is garbage once
		// the next append reallocates.
		d.buf = d.buf[i+1:]

		if f, ok := d.processLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Close flushes the decoder at end of stream. A final line without a
// trailing newline is processed as if the newline had arrived.
func (d *Decoder) Close() []Frame {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil

	if f, ok := d.processLine(line); ok {
		return []Frame{f}
	}
	return nil
}

// processLine handles one complete line. It returns a frame only for a
// well-formed data line; everything else either updates the pending event
// type or is ignored.
func (d *Decoder) processLine(line []byte) (Frame, bool) {
	line = bytes.TrimRight(line, "\r")

	// Blank lines are record separators; nothing to do at line granularity.
	if len(line) == 0 {
		return Frame{}, false
	}

	if rest, ok := bytes.CutPrefix(line, eventPrefix); ok {
		d.pending = string(bytes.TrimSpace(rest))
		return Frame{}, false
	}

	if rest, ok := bytes.CutPrefix(line, dataPrefix); ok {
		data := bytes.TrimSpace(rest)
		if !json.Valid(data) || len(data) == 0 || data[0] != '{' {
			// Malformed frames are dropped, never fatal: the stream
			// carries on and the reducer sees nothing.
			d.Dropped++
			if d.OnDrop != nil {
				d.OnDrop(data)
			}
			d.pending = ""
			return Frame{}, false
		}

		event := d.pending
		d.pending = ""
		if event == "" {
			// A bare data line is a content delta by the server's
			// convention.
			event = EventContent
		}

		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Frame{Event: event, Data: raw}, true
	}

	// Lines matching neither prefix (comments, ids, retry hints) are
	// ignored for forward compatibility.
	return Frame{}, false
}

// =============================================================================
// STREAM SCANNING
// =============================================================================

// ErrStop is returned by a scan callback to end consumption early without
// reporting an error to the caller.
var ErrStop = errors.New("stream: stop")

// readChunkSize is the read granularity for Scan. Frames are typically far
// smaller; the decoder handles any split.
const readChunkSize = 4096

// Scan reads r to completion with a fresh decoder. Use the Decoder method
// when the drop count matters to the caller.
func Scan(ctx context.Context, r io.Reader, fn func(Frame) error) error {
	return NewDecoder().Scan(ctx, r, fn)
}

// Scan reads r to completion, feeding the decoder and invoking fn for each
// frame in arrival order. It returns nil on EOF or ErrStop, the context
// error on cancellation, and the read or callback error otherwise. Dropped
// reflects the whole stream once Scan returns.
//
// Abandoning a stream is just returning ErrStop (or cancelling ctx) and
// closing the body; the server is not told to stop generating.
func (d *Decoder) Scan(ctx context.Context, r io.Reader, fn func(Frame) error) error {
	buf := make([]byte, readChunkSize)

	emit := func(frames []Frame) error {
		for _, f := range frames {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if cbErr := emit(d.Feed(buf[:n])); cbErr != nil {
				if errors.Is(cbErr, ErrStop) {
					return nil
				}
				return cbErr
			}
		}
		if err != nil {
			if err == io.EOF {
				if cbErr := emit(d.Close()); cbErr != nil && !errors.Is(cbErr, ErrStop) {
					return cbErr
				}
				return nil
			}
			return err
		}
	}
}
