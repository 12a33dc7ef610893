package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/groupgate/groupgate/internal/ratelimit"
)

// ---------------------------------------------------------------------------
// RequestID middleware
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetRequestID(r.Context())
		if id == "" {
			t.Error("expected non-empty request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	respID := rr.Header().Get("X-Request-ID")
	if respID == "" {
		t.Error("expected X-Request-ID in response header")
	}
	if len(respID) != 36 {
		t.Errorf("expected UUID-length request ID, got %q (len=%d)", respID, len(respID))
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if respID := rr.Header().Get("X-Request-ID"); respID != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, respID)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty request ID from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Logging middleware
// ---------------------------------------------------------------------------

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))

	// Probe paths log at debug, below the handler's info threshold.
	req := httptest.NewRequest("GET", "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if buf.Len() != 0 {
		t.Errorf("probe path produced log output: %s", buf.String())
	}

	buf.Reset()
	req = httptest.NewRequest("POST", "/api/v1/redeem", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	line := buf.String()
	if !strings.Contains(line, "level=INFO") || !strings.Contains(line, "path=/api/v1/redeem") {
		t.Errorf("expected info line for API path, got %q", line)
	}
	if !strings.Contains(line, "status=200") {
		t.Errorf("expected status=200 in log line, got %q", line)
	}

	buf.Reset()
	req = httptest.NewRequest("GET", "/boom", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	line = buf.String()
	if !strings.Contains(line, "level=ERROR") || !strings.Contains(line, "status=500") {
		t.Errorf("expected error line for 500 response, got %q", line)
	}
}

// ---------------------------------------------------------------------------
// Public rate limit middleware
// ---------------------------------------------------------------------------

func TestPublicRateLimitEnforcesCeiling(t *testing.T) {
	handler := RequestID(PublicRateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/verify", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest("POST", "/verify", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3: status %d, want 429", rr.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if resp.Success || resp.Error.Code != http.StatusTooManyRequests {
		t.Errorf("unexpected 429 envelope: %+v", resp)
	}
}

// ---------------------------------------------------------------------------
// Rate limit headers
// ---------------------------------------------------------------------------

func TestSetRateLimitHeaders(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Second)
	rr := httptest.NewRecorder()

	SetRateLimitHeaders(rr, ratelimit.Decision{
		Allowed:   false,
		Limit:     60,
		Remaining: 0,
		ResetAt:   resetAt,
	})

	if got := rr.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %q, want 60", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if got := rr.Header().Get("X-RateLimit-Reset"); got != fmt.Sprint(resetAt.Unix()) {
		t.Errorf("X-RateLimit-Reset = %q, want %d", got, resetAt.Unix())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After on a denied decision")
	}

	// Allowed decisions carry no Retry-After.
	rr = httptest.NewRecorder()
	SetRateLimitHeaders(rr, ratelimit.Decision{
		Allowed:   true,
		Limit:     60,
		Remaining: 59,
		ResetAt:   resetAt,
	})
	if rr.Header().Get("Retry-After") != "" {
		t.Error("unexpected Retry-After on an allowed decision")
	}
}
