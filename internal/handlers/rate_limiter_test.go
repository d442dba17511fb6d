package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSimpleRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("user_1") || !limiter.Allow("user_1") {
		t.Fatal("expected first two requests to pass")
	}
	if limiter.Allow("user_1") {
		t.Fatal("expected third request within the window to be rejected")
	}
	// Other callers keep their own budget.
	if !limiter.Allow("user_2") {
		t.Fatal("expected separate key to pass")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("user_1") {
		t.Fatal("expected request to pass after the window expired")
	}
}

func TestSimpleRateLimiterBlankKeyBucketsTogether(t *testing.T) {
	limiter := newSimpleRateLimiter(1, time.Minute, nil)

	if !limiter.Allow("") {
		t.Fatal("expected first anonymous request to pass")
	}
	if limiter.Allow("   ") {
		t.Fatal("expected blank keys to share the anonymous bucket")
	}
}

func TestRateLimitMiddlewareRejectsOverLimit(t *testing.T) {
	middleware := RateLimitMiddleware(1)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = asUser(req, "user_1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	var errResp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if errResp["error"] != "rate_limited" {
		t.Fatalf("expected rate_limited, got %v", errResp["error"])
	}
}

func TestRateLimitMiddlewareDisabledWhenNonPositive(t *testing.T) {
	middleware := RateLimitMiddleware(0)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected unlimited requests, got %d on attempt %d", rr.Code, i)
		}
	}
}
