// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// CHAT STREAM
// =============================================================================

// OpenChatStream POSTs a chat request and returns the raw event-stream body
// for package stream to decode. The caller must Close the body.
//
// Retries apply to the connect phase only (dial errors and 5xx before any
// stream bytes). A stream that breaks mid-flight is never retried here:
// once frames have been observed, partial effects may already be folded
// into the transcript, and the session controller's reload-or-discard
// policy is the recovery path.
func (c *Client) OpenChatStream(ctx context.Context, req *ChatStreamRequest) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/chat/stream", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(httpReq)
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Cache-Control", "no-cache")

		resp, err := c.streamClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}

		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		reqErr := c.handleErrorResponse(resp, data)

		// 4xx will not get better by retrying.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, reqErr
		}
		lastErr = reqErr
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
