// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/perpdeck/perpdeck-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for connect-phase failures.
	DefaultMaxRetries = 3

	// retryBaseDelay and retryMaxDelay shape the exponential backoff.
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps REST response bodies.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// defaultRequestsPerSec paces outgoing requests so dashboard polling
	// plus chat traffic stays under the platform's per-key quota.
	defaultRequestsPerSec = 8
	defaultBurst          = 16
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no client timeout; stream lifetime is
	// controlled by the request context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the perpdeck platform API.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	limiter    *rate.Limiter

	// Swappable for tests.
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a platform client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		maxRetries:   DefaultMaxRetries,
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSec), defaultBurst),
		httpClient:   sharedHTTPClient,
		streamClient: sharedStreamingClient,
	}
}

// IsConfigured reports whether the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// setHeaders applies auth and correlation headers to a request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// calculateBackoff returns the delay before the given retry attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay << uint(attempt-1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// handleErrorResponse converts a non-OK response into a typed error.
func (c *Client) handleErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}

	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	perr := &PlatformError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		perr.Code = payload.Error.Code
		perr.Message = payload.Error.Message
	}
	return perr
}

// doJSON performs a paced, authenticated request and decodes the JSON
// response into out (nil out discards the body).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the user's conversations, most recent first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var out struct {
		Conversations []model.Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// History returns the persisted messages of a conversation in order.
func (c *Client) History(ctx context.Context, conversationID int64) ([]ServerMessage, error) {
	var out struct {
		Messages []ServerMessage `json:"messages"`
	}
	path := "/api/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// DeleteConversation removes a conversation server-side.
func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	path := "/api/conversations/" + strconv.FormatInt(conversationID, 10)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// AccountSummary fetches the account equity snapshot.
func (c *Client) AccountSummary(ctx context.Context) (*AccountSummary, error) {
	var out AccountSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/account/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Positions fetches open perpetual positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out struct {
		Positions []Position `json:"positions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/positions", nil, &out); err != nil {
		return nil, err
	}
	return out.Positions, nil
}

// Watchlist fetches the server-persisted watchlist with live quotes.
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistEntry, error) {
	var out struct {
		Entries []WatchlistEntry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/watchlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// SaveWatchlist replaces the watchlist symbols server-side.
func (c *Client) SaveWatchlist(ctx context.Context, symbols []string) error {
	body := struct {
		Symbols []string `json:"symbols"`
	}{Symbols: symbols}
	return c.doJSON(ctx, http.MethodPut, "/api/watchlist", body, nil)
}

// StorageStats fetches retention/storage counters for the settings view.
func (c *Client) StorageStats(ctx context.Context) (*StorageStats, error) {
	var out StorageStats
	if err := c.doJSON(ctx, http.MethodGet, "/api/storage/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// BACKTESTS
// =============================================================================

// SubmitBacktest queues a prompt backtest and returns the job.
func (c *Client) SubmitBacktest(ctx context.Context, req *BacktestRequest) (*BacktestJob, error) {
	var out BacktestJob
	if err := c.doJSON(ctx, http.MethodPost, "/api/backtests", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BacktestStatus polls a backtest job.
func (c *Client) BacktestStatus(ctx context.Context, jobID int64) (*BacktestJob, error) {
	var out BacktestJob
	path := "/api/backtests/" + strconv.FormatInt(jobID, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BacktestResult fetches the summary of a completed run.
func (c *Client) BacktestResult(ctx context.Context, jobID int64) (*BacktestResult, error) {
	var out BacktestResult
	path := "/api/backtests/" + strconv.FormatInt(jobID, 10) + "/result"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// ValidateBaseURL rejects obviously broken platform URLs before they are
// written to config.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid platform URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid platform URL scheme %q (want http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("platform URL missing host")
	}
	return nil
}
