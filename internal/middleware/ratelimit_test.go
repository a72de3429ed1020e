package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !rl.Allow("key") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("key") {
		t.Error("6th request should be denied")
	}
	if !rl.Allow("other") {
		t.Error("a different key has its own bucket")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(3, 30*time.Millisecond)

	for i := 0; i < 3; i++ {
		rl.Allow("key")
	}

	if rl.Allow("key") {
		t.Error("should be blocked once the bucket is empty")
	}

	// One token comes back every 10ms.
	time.Sleep(20 * time.Millisecond)

	if !rl.Allow("key") {
		t.Error("should be allowed after the bucket refills")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, 10*time.Millisecond)

	rl.Allow("expired")
	time.Sleep(20 * time.Millisecond)
	rl.Allow("active")

	rl.Cleanup()

	if rl.size() != 1 {
		t.Fatalf("visitors = %d, want 1", rl.size())
	}
	if _, ok := rl.visitors["active"]; !ok {
		t.Error("active visitor should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	keyFunc := func(r *http.Request) string { return "test" }

	handler := RateLimit(rl, keyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First 2 requests should pass
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 3rd request should be rate limited
	req := httptest.NewRequest("POST", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q, want %q", rec.Header().Get("Retry-After"), "30")
	}
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if ip := RealIP(req); ip != "10.0.0.1" {
		t.Errorf("RealIP = %q, want %q", ip, "10.0.0.1")
	}

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if ip := RealIP(req); ip != "1.2.3.4" {
		t.Errorf("RealIP = %q, want %q", ip, "1.2.3.4")
	}
}
