package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(config *Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(config)
	l.now = clock.Now
	return l, clock
}

func TestTokenBucket_Take(t *testing.T) {
	now := time.Now()
	bucket := newTokenBucket(10, 1.0, now)

	for i := 0; i < 10; i++ {
		if allowed, _, _ := bucket.take(now); !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	allowed, remaining, reset := bucket.take(now)
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", remaining)
	}
	if want := now.Add(10 * time.Second); !reset.Equal(want) {
		t.Errorf("Expected reset at %v, got %v", want, reset)
	}
	if got := bucket.retryAfter(); got != time.Second {
		t.Errorf("Expected retry after 1s, got %v", got)
	}
}

func TestTokenBucket_Refill(t *testing.T) {
	now := time.Now()
	bucket := newTokenBucket(10, 1.0, now)
	for i := 0; i < 10; i++ {
		bucket.take(now)
	}

	now = now.Add(1100 * time.Millisecond)
	if allowed, _, _ := bucket.take(now); !allowed {
		t.Error("Expected request to be allowed after refill")
	}
	if allowed, _, _ := bucket.take(now); allowed {
		t.Error("Expected request to be denied after consuming refilled token")
	}

	// Refill never exceeds capacity.
	now = now.Add(time.Hour)
	if _, remaining, _ := bucket.take(now); remaining != 9 {
		t.Errorf("Expected 9 remaining, got %d", remaining)
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		allowed, info := limiter.Allow("127.0.0.1", "/api/generate", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 10 {
			t.Errorf("Expected limit 10, got %d", info.Limit)
		}
		if info.Remaining != 9-i {
			t.Errorf("Expected remaining %d, got %d", 9-i, info.Remaining)
		}
	}

	allowed, info := limiter.Allow("127.0.0.1", "/api/generate", "POST")
	if allowed {
		t.Error("Expected 11th request to be denied")
	}
	if info.RetryAfter != 6*time.Second {
		t.Errorf("Expected retry after 6s, got %v", info.RetryAfter)
	}

	// The default bucket is shared by every unmatched path.
	if allowed, _ := limiter.Allow("127.0.0.1", "/api/models", "GET"); allowed {
		t.Error("Expected other default endpoint to share the exhausted bucket")
	}
	if allowed, _ := limiter.Allow("10.0.0.1", "/api/generate", "POST"); !allowed {
		t.Error("Expected a different client to be allowed")
	}
}

func TestLimiter_RefillOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})
	defer limiter.Stop()

	limiter.Allow("c", "/x", "GET")
	limiter.Allow("c", "/x", "GET")
	if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
		t.Fatal("Expected bucket to be exhausted")
	}

	clock.Advance(31 * time.Second)
	if allowed, _ := limiter.Allow("c", "/x", "GET"); !allowed {
		t.Error("Expected one token after half a window")
	}
}

func TestLimiter_WhitelistBlacklistDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"127.0.0.1": true},
		Blacklist:     map[string]bool{"192.168.1.1": true},
	})
	defer limiter.Stop()

	for i := 0; i < 50; i++ {
		if allowed, info := limiter.Allow("127.0.0.1", "/x", "GET"); !allowed || info.Limit != 0 {
			t.Fatalf("Expected whitelisted request %d to be allowed without limit", i+1)
		}
	}
	if allowed, _ := limiter.Allow("192.168.1.1", "/x", "GET"); allowed {
		t.Error("Expected blacklisted request to be denied")
	}

	disabled, _ := newTestLimiter(&Config{Enabled: false})
	defer disabled.Stop()
	for i := 0; i < 50; i++ {
		if allowed, _ := disabled.Allow("127.0.0.1", "/x", "GET"); !allowed {
			t.Fatalf("Expected request %d to be allowed when disabled", i+1)
		}
	}
}

func TestLimiter_HealthIsUnlimited(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	defer limiter.Stop()

	for i := 0; i < 20; i++ {
		if allowed, _ := limiter.Allow("c", HealthPath, "GET"); !allowed {
			t.Fatalf("Expected health check %d to be allowed", i+1)
		}
	}
}

func TestLimiter_EndpointSpecific(t *testing.T) {
	limiter, _ := newTestLimiter(NewConfig(100, time.Hour))
	defer limiter.Stop()

	// Analysis allows 20 per hour with a burst of 5.
	for i := 0; i < 5; i++ {
		allowed, info := limiter.Allow("c", "/api/analyze", "POST")
		if !allowed {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
		if info.Limit != 20 {
			t.Errorf("Expected limit 20, got %d", info.Limit)
		}
	}
	if allowed, _ := limiter.Allow("c", "/api/analyze", "POST"); allowed {
		t.Error("Expected request after burst to be denied")
	}

	allowed, info := limiter.Allow("c", "/api/compress", "POST")
	if !allowed || info.Limit != 100 {
		t.Errorf("Expected default limit 100 for compress, got allowed=%v limit=%d", allowed, info.Limit)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestLimiter(&Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute})
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow("c", "/x", "GET"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 100 {
		t.Errorf("Expected 100 allowed requests, got %d", allowedCount)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(&Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/x", "GET")
	}
	clock.Advance(2 * time.Hour)
	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("127.0.0.%d", i+1), "/x", "GET")
	}

	limiter.cleanup(clock.Now().Add(-time.Hour))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.buckets) != 5 {
		t.Errorf("Expected 5 buckets after cleanup, got %d", len(limiter.buckets))
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	limiter := NewLimiter(nil)
	limiter.Stop()
	limiter.Stop()
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/api/analyze", Method: "POST", Limit: 1},
		{Path: "/api/sessions/", Method: "DELETE", Limit: 2},
		{Path: "/api/", Method: "DELETE", Limit: 3},
	}

	tests := []struct {
		path, method string
		wantLimit    int
		wantNil      bool
	}{
		{"/api/analyze", "POST", 1, false},
		{"/api/analyze", "GET", 0, true},
		{"/api/sessions/abc", "DELETE", 2, false},
		{"/api/other", "DELETE", 3, false},
		{"/api/compress", "POST", 0, true},
		{HealthPath, "GET", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Expected no match, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Expected a match")
			}
			if got.Limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got.Limit)
			}
		})
	}
}

func TestParseIPList(t *testing.T) {
	got := ParseIPList(" 10.0.0.1, ,10.0.0.2 ")
	if len(got) != 2 || !got["10.0.0.1"] || !got["10.0.0.2"] {
		t.Errorf("Unexpected IP set: %v", got)
	}
	if len(ParseIPList("")) != 0 {
		t.Error("Expected empty set")
	}
}
