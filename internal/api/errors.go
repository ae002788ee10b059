// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the platform API key is not set.
	ErrNotConfigured = errors.New("platform API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates the platform throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound indicates the requested resource does not exist
	// (e.g. a conversation deleted by retention).
	ErrNotFound = errors.New("not found")
)

// PlatformError is an application-level error reported by the platform.
type PlatformError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("platform error (HTTP %d): %s", e.Status, e.Message)
}

// Is maps well-known statuses onto the package sentinels so callers can use
// errors.Is without inspecting status codes.
func (e *PlatformError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// RateLimitError carries the platform's Retry-After hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to be compared with ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// parseRetryAfter turns a Retry-After header into a duration (seconds or
// HTTP date form). Zero means no usable hint.
func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(h); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		return time.Until(t)
	}
	return 0
}
