// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, "test-key")
	return client, server
}

// =============================================================================
// REST TESTS
// =============================================================================

func TestListConversations(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing correlation id")
		}
		w.Write([]byte(`{"conversations":[{"id":1,"title":"BTC scalper"},{"id":2,"title":"funding"}]}`))
	}))
	defer server.Close()

	convs, err := client.ListConversations(context.Background())
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != 1 || convs[0].Title != "BTC scalper" {
		t.Errorf("conversations = %+v", convs)
	}
}

func TestHistoryMapsServerShape(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations/7/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"messages":[
			{"id":10,"role":"user","content":"diagnose"},
			{"id":11,"role":"assistant","content":"done","round":99,
			 "steps":[{"kind":"tool_call","tool":"fetch_klines","args":"{}"}],
			 "diagnoses":[{"title":"overleveraged","severity":"warning"}]}
		]}`))
	}))
	defer server.Close()

	msgs, err := client.History(context.Background(), 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[1].Steps[0].Tool != "fetch_klines" {
		t.Errorf("steps = %+v", msgs[1].Steps)
	}
	if len(msgs[1].Diagnoses) != 1 {
		t.Errorf("diagnoses = %+v", msgs[1].Diagnoses)
	}
}

func TestWatchlistRoundTrip(t *testing.T) {
	var putBody []byte
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/watchlist" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"entries":[{"symbol":"BTCUSDT","last_price":64000.5,"change_24h_pct":-1.2,"funding_rate":0.0001}]}`))
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("method = %q", r.Method)
		}
	}))
	defer server.Close()

	entries, err := client.Watchlist(context.Background())
	if err != nil {
		t.Fatalf("Watchlist: %v", err)
	}
	if len(entries) != 1 || entries[0].Symbol != "BTCUSDT" || entries[0].LastPrice != 64000.5 {
		t.Errorf("entries = %+v", entries)
	}

	if err := client.SaveWatchlist(context.Background(), []string{"BTCUSDT", "ETHUSDT"}); err != nil {
		t.Fatalf("SaveWatchlist: %v", err)
	}
	if !strings.Contains(string(putBody), `"ETHUSDT"`) {
		t.Errorf("put body = %s", putBody)
	}
}

func TestNotConfigured(t *testing.T) {
	client := NewClient("http://localhost:1", "")
	_, err := client.ListConversations(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestAuthFailure(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"bad_key","message":"invalid API key"}}`))
	}))
	defer server.Close()

	_, err := client.AccountSummary(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("err = %v, want ErrAuthFailed", err)
	}
	var perr *PlatformError
	if !errors.As(err, &perr) || perr.Code != "bad_key" {
		t.Errorf("err = %v, want PlatformError with code", err)
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := client.Positions(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) || rle.RetryAfter != 2*time.Second {
		t.Errorf("err = %v, want RetryAfter 2s", err)
	}
}

func TestNotFound(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.History(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestOpenChatStream(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("accept = %q", got)
		}
		w.Write([]byte("event: done\ndata: {\"content\":\"hi\",\"conversation_id\":5}\n"))
	}))
	defer server.Close()

	body, err := client.OpenChatStream(context.Background(), &ChatStreamRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("OpenChatStream: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if len(data) == 0 {
		t.Error("empty stream body")
	}
}

func TestOpenChatStreamNoRetryOn4xx(t *testing.T) {
	calls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"empty content"}}`))
	}))
	defer server.Close()

	_, err := client.OpenChatStream(context.Background(), &ChatStreamRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1 (no 4xx retry)", calls)
	}
}

func TestOpenChatStreamRetriesOn5xx(t *testing.T) {
	calls := 0
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("data: {\"content\":\"ok\"}\n"))
	}))
	defer server.Close()

	body, err := client.OpenChatStream(context.Background(), &ChatStreamRequest{Content: "x"})
	if err != nil {
		t.Fatalf("OpenChatStream after retries: %v", err)
	}
	body.Close()
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidateBaseURL(t *testing.T) {
	if err := ValidateBaseURL("https://api.perpdeck.io"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	if err := ValidateBaseURL("ftp://nope"); err == nil {
		t.Error("ftp scheme accepted")
	}
	if err := ValidateBaseURL("https://"); err == nil {
		t.Error("missing host accepted")
	}
}
