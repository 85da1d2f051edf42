package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/forgo/atelier/internal/metrics"
)

// fixedClock lets tests move time by hand
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg RateLimitConfig) (*RateLimiter, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 2, Burst: 1, Window: time.Hour})

	for i := range 3 {
		allowed, remaining, _ := rl.Allow(ClassGeneral, "ip:10.0.0.1")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 2-i)
		}
	}

	allowed, _, retry := rl.Allow(ClassGeneral, "ip:10.0.0.1")
	if allowed {
		t.Error("expected the fourth request to be denied")
	}
	// one token per half hour
	if retry < 29*time.Minute || retry > 31*time.Minute {
		t.Errorf("retry after = %v, want about 30m", retry)
	}
	if allowed, _, _ := rl.Allow(ClassGeneral, "ip:10.0.0.2"); !allowed {
		t.Error("expected a separate bucket per caller")
	}
}

func TestRateLimiter_RefillsContinuously(t *testing.T) {
	t.Parallel()
	rl, clock := newTestLimiter(t, RateLimitConfig{Rate: 4, Window: time.Minute})

	for range 4 {
		rl.Allow(ClassGeneral, "k")
	}
	if allowed, _, _ := rl.Allow(ClassGeneral, "k"); allowed {
		t.Fatal("expected bucket to be empty")
	}

	clock.Advance(16 * time.Second)
	if allowed, _, _ := rl.Allow(ClassGeneral, "k"); !allowed {
		t.Error("expected one token after a quarter window")
	}
	if allowed, _, _ := rl.Allow(ClassGeneral, "k"); allowed {
		t.Error("expected only one token after a quarter window")
	}
}

func TestRateLimiter_ClassesAreSeparate(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 100, Window: time.Minute, CredentialsRate: 2})

	rl.Allow(ClassCredentials, "ip:1")
	rl.Allow(ClassCredentials, "ip:1")
	if allowed, _, _ := rl.Allow(ClassCredentials, "ip:1"); allowed {
		t.Error("expected the credentials budget to be spent")
	}
	if allowed, _, _ := rl.Allow(ClassGeneral, "ip:1"); !allowed {
		t.Error("expected the general budget to be untouched")
	}
}

func TestRateLimiter_ConcurrentAllow(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 50, Burst: 20, Window: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := rl.Allow(ClassGeneral, "shared"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 70 {
		t.Errorf("expected 70 granted requests, got %d", granted)
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	t.Parallel()
	rl, clock := newTestLimiter(t, RateLimitConfig{IdleTTL: time.Minute})

	rl.Allow(ClassGeneral, "stale")
	clock.Advance(2 * time.Minute)
	rl.Allow(ClassGeneral, "fresh")
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["general|stale"]; ok {
		t.Error("expected stale bucket to be removed")
	}
	if _, ok := rl.buckets["general|fresh"]; !ok {
		t.Error("expected fresh bucket to be kept")
	}
}

func TestRateLimitKey(t *testing.T) {
	t.Parallel()

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "192.0.2.7:51234"
	if got := rateLimitKey(anon); got != "ip:192.0.2.7" {
		t.Errorf("anonymous key = %q", got)
	}

	noPort := httptest.NewRequest(http.MethodGet, "/", nil)
	noPort.RemoteAddr = "192.0.2.7"
	if got := rateLimitKey(noPort); got != "ip:192.0.2.7" {
		t.Errorf("portless key = %q", got)
	}

	authed := anon.WithContext(context.WithValue(anon.Context(), UserIDKey, "user:ada"))
	if got := rateLimitKey(authed); got != "user:user:ada" {
		t.Errorf("authenticated key = %q", got)
	}
}

func TestLimitFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		method, path string
		want         LimitClass
	}{
		{http.MethodPost, "/v1/auth/login", ClassCredentials},
		{http.MethodPost, "/v1/auth/password", ClassCredentials},
		{http.MethodGet, "/v1/auth/me", ClassGeneral},
		{http.MethodPost, "/v1/workshops", ClassGeneral},
	}
	for _, tt := range tests {
		if got := limitFor(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
			t.Errorf("%s %s = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 1, Burst: 1, Window: time.Minute})
	h := RateLimit(rl)(okHandler("ok"))

	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/workshops", nil)
		req.RemoteAddr = "198.51.100.1:1000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if last.Header().Get("X-RateLimit-Limit") != "1" || last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("unexpected rate limit headers %v", last.Header())
	}
	retry, err := strconv.Atoi(last.Header().Get("Retry-After"))
	if err != nil || retry < 59 || retry > 61 {
		t.Errorf("expected Retry-After of about 60, got %q", last.Header().Get("Retry-After"))
	}
}

func TestRateLimit_CredentialsKeyedByAddress(t *testing.T) {
	t.Parallel()
	rl, _ := newTestLimiter(t, RateLimitConfig{Rate: 100, Window: time.Minute, CredentialsRate: 1})
	h := RateLimit(rl)(okHandler("ok"))
	before := testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues(string(ClassCredentials)))

	// a token for another user must not buy a fresh budget
	for i, user := range []string{"", "user:ada"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/password", nil)
		req.RemoteAddr = "198.51.100.2:1000"
		if user != "" {
			req = req.WithContext(context.WithValue(req.Context(), UserIDKey, user))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if rr.Code != want {
			t.Errorf("request %d: status %d, want %d", i+1, rr.Code, want)
		}
	}

	after := testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues(string(ClassCredentials)))
	if after-before < 1 {
		t.Error("expected the rejection to be counted")
	}
}
