package services

import (
	"context"
	"net/http/httptest"
	"testing"

	"dealhub/internal/config"
)

func rateLimitConfig(requests, windowSeconds int) *config.RateLimitConfig {
	return &config.RateLimitConfig{
		Enabled:       true,
		Requests:      requests,
		WindowSeconds: windowSeconds,
		KeyPrefix:     "ratelimit",
	}
}

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	limiter := NewRateLimiter(newTestRedis(t), newTestLogger(), rateLimitConfig(3, 60))

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(context.Background(), "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !decision.Allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	decision, err := limiter.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Expected 4th request to be rejected")
	}
	if decision.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", decision.Remaining)
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	limiter := NewRateLimiter(newTestRedis(t), newTestLogger(), rateLimitConfig(1, 60))

	if decision, _ := limiter.Allow(context.Background(), "10.0.0.1"); !decision.Allowed {
		t.Fatal("Expected first IP to be allowed")
	}
	if decision, _ := limiter.Allow(context.Background(), "10.0.0.2"); !decision.Allowed {
		t.Error("Expected a different IP to have its own window")
	}
	if decision, _ := limiter.Allow(context.Background(), "10.0.0.1"); decision.Allowed {
		t.Error("Expected first IP to be over its limit")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(nil, newTestLogger(), &config.RateLimitConfig{Enabled: false})

	if limiter.Enabled() {
		t.Error("Expected limiter to be disabled")
	}
	for i := 0; i < 100; i++ {
		decision, err := limiter.Allow(context.Background(), "10.0.0.1")
		if err != nil || !decision.Allowed {
			t.Fatal("Expected disabled limiter to allow everything")
		}
	}
}

func TestRateLimiter_Usage(t *testing.T) {
	limiter := NewRateLimiter(newTestRedis(t), newTestLogger(), rateLimitConfig(5, 60))

	// Пустое окно.
	decision, err := limiter.Usage(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if decision.Remaining != 5 {
		t.Errorf("Expected 5 remaining in empty window, got %d", decision.Remaining)
	}

	for i := 0; i < 2; i++ {
		if _, err := limiter.Allow(context.Background(), "10.0.0.1"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	decision, err = limiter.Usage(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if decision.Remaining != 3 {
		t.Errorf("Expected 3 remaining after 2 requests, got %d", decision.Remaining)
	}

	// Usage не учитывает запросы.
	decision, _ = limiter.Usage(context.Background(), "10.0.0.1")
	if decision.Remaining != 3 {
		t.Errorf("Expected Usage to not consume the window, got %d remaining", decision.Remaining)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		realIP     string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"x-real-ip wins", "203.0.113.7", "198.51.100.1", "10.0.0.1:1234", "203.0.113.7"},
		{"first forwarded entry", "", "198.51.100.1, 10.0.0.5", "10.0.0.1:1234", "198.51.100.1"},
		{"remote addr host", "", "", "10.0.0.1:1234", "10.0.0.1"},
		{"remote addr without port", "", "", "10.0.0.1", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}
