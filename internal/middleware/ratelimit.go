package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/model"
)

// LimitClass groups requests that share a budget
type LimitClass string

const (
	// ClassGeneral covers every request not listed below
	ClassGeneral LimitClass = "general"
	// ClassCredentials covers password and refresh token exchanges. It is
	// keyed by client address even when a token is present.
	ClassCredentials LimitClass = "credentials"
)

// credentialRoutes are the POST paths that accept a secret
var credentialRoutes = map[string]bool{
	"/v1/auth/login":    true,
	"/v1/auth/register": true,
	"/v1/auth/refresh":  true,
	"/v1/auth/password": true,
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Rate            int           // General requests per window (default 100)
	Window          time.Duration // Refill window (default 1 minute)
	Burst           int           // Extra tokens on top of Rate
	CredentialsRate int           // Credential requests per window (default 10)
	IdleTTL         time.Duration // Buckets unused this long are dropped (default 10 minutes)
}

// RateLimiter keeps one token bucket per caller and class. Buckets refill
// continuously at Rate tokens per Window and hold at most Rate+Burst.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*callerBucket
	limits  map[LimitClass]classLimit
	idleTTL time.Duration
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type classLimit struct {
	perWindow int
	every     rate.Limit
	capacity  int
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts its eviction loop
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst < 0 {
		cfg.Burst = 0
	}
	if cfg.CredentialsRate <= 0 {
		cfg.CredentialsRate = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	perSecond := func(n int) rate.Limit {
		return rate.Limit(float64(n) / cfg.Window.Seconds())
	}

	rl := &RateLimiter{
		buckets: make(map[string]*callerBucket),
		limits: map[LimitClass]classLimit{
			ClassGeneral:     {perWindow: cfg.Rate, every: perSecond(cfg.Rate), capacity: cfg.Rate + cfg.Burst},
			ClassCredentials: {perWindow: cfg.CredentialsRate, every: perSecond(cfg.CredentialsRate), capacity: cfg.CredentialsRate},
		},
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go rl.evictLoop()

	return rl
}

// Stop ends the eviction loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow takes one token from the caller's bucket for the class. When the
// bucket is empty it reports how long until a token is available.
func (rl *RateLimiter) Allow(class LimitClass, caller string) (allowed bool, remaining int, retryAfter time.Duration) {
	limit, ok := rl.limits[class]
	if !ok {
		limit = rl.limits[ClassGeneral]
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := string(class) + "|" + caller
	b, exists := rl.buckets[key]
	if !exists {
		b = &callerBucket{limiter: rate.NewLimiter(limit.every, limit.capacity)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, delay
	}

	return true, int(math.Floor(b.limiter.TokensAt(now))), 0
}

// limitFor returns the class of a request
func limitFor(r *http.Request) LimitClass {
	if r.Method == http.MethodPost && credentialRoutes[r.URL.Path] {
		return ClassCredentials
	}
	return ClassGeneral
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitKey buckets authenticated callers by user and everyone else by
// client host, so that several connections from one address share a bucket
func rateLimitKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != "" {
		return "user:" + id
	}
	return "ip:" + clientHost(r)
}

// RateLimit rejects requests over the caller's budget with 429 and a
// Retry-After header
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := limitFor(r)
			caller := rateLimitKey(r)
			if class == ClassCredentials {
				caller = "ip:" + clientHost(r)
			}

			allowed, remaining, retryAfter := limiter.Allow(class, caller)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.limits[class].perWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				metrics.RateLimitedTotal.WithLabelValues(string(class)).Inc()

				model.NewRateLimitError(seconds).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
