// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"sync/atomic"
	"time"
)

// =============================================================================
// MESSAGE IDENTITY
// =============================================================================

// MessageID identifies a message either by a client-assigned optimistic id
// (created when the user hits send, before the server has seen anything) or
// by the server-assigned id of a persisted message.
//
// Optimistic ids are stable display keys for the life of the session and
// are deliberately never reconciled with server ids; history reloads rebuild
// the transcript wholesale with persisted ids instead.
type MessageID struct {
	value     int64
	persisted bool
}

// lastLocalID guarantees local ids are strictly monotonic within a process
// even when two sends land on the same millisecond.
var lastLocalID atomic.Int64

// NewLocalID returns a timestamp-derived optimistic message id,
// monotonically increasing for this process.
func NewLocalID() MessageID {
	now := time.Now().UnixMilli()
	for {
		last := lastLocalID.Load()
		if now <= last {
			now = last + 1
		}
		if lastLocalID.CompareAndSwap(last, now) {
			return MessageID{value: now}
		}
	}
}

// LocalID wraps an explicit optimistic id value. The streaming assistant
// placeholder uses the user message's id plus one.
func LocalID(v int64) MessageID {
	return MessageID{value: v}
}

// PersistedID wraps a server-assigned message id.
func PersistedID(v int64) MessageID {
	return MessageID{value: v, persisted: true}
}

// Value returns the numeric id.
func (id MessageID) Value() int64 { return id.value }

// IsPersisted reports whether the id was assigned by the server.
func (id MessageID) IsPersisted() bool { return id.persisted }

// IsZero reports whether the id is the zero value.
func (id MessageID) IsZero() bool { return id.value == 0 && !id.persisted }

// Succ returns the optimistic id immediately following this one. Only
// meaningful for local ids; used to pair a user message with its streaming
// assistant placeholder.
func (id MessageID) Succ() MessageID {
	return MessageID{value: id.value + 1, persisted: id.persisted}
}

// String renders the id with its namespace, e.g. "local:1717680001234" or
// "srv:512". The namespace keeps local and persisted ids from colliding as
// map keys.
func (id MessageID) String() string {
	if id.persisted {
		return "srv:" + strconv.FormatInt(id.value, 10)
	}
	return "local:" + strconv.FormatInt(id.value, 10)
}
