package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/atelier/internal/metrics"
	"github.com/forgo/atelier/internal/model"
)

// maxIdempotencyKeyLen bounds the header value kept in memory
const maxIdempotencyKeyLen = 255

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	TTL     time.Duration // How long a finished response is replayed (default 24h)
	Cleanup time.Duration // Sweep interval (default 1h)
}

// IdempotencyStore remembers responses per caller and Idempotency-Key. It
// lives in process memory, so replays only work against the same instance.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*storedResponse
	ttl     time.Duration
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type storedResponse struct {
	fingerprint string
	status      int
	headers     http.Header
	body        []byte
	expiresAt   time.Time
	pending     bool
}

// NewIdempotencyStore creates a store and starts its sweep loop
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = time.Hour
	}

	s := &IdempotencyStore{
		entries: make(map[string]*storedResponse),
		ttl:     cfg.TTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go s.sweepLoop(cfg.Cleanup)

	return s
}

// Stop ends the sweep loop. It is safe to call more than once.
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *IdempotencyStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *IdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !e.pending && e.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

type claimResult int

const (
	claimNew claimResult = iota
	claimReplay
	claimPending
	claimMismatch
)

// claim looks up key. When nothing usable is stored it reserves the key
// for the caller and returns claimNew.
func (s *IdempotencyStore) claim(key, fingerprint string) (claimResult, *storedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && (e.pending || e.expiresAt.After(s.now())) {
		switch {
		case e.fingerprint != fingerprint:
			return claimMismatch, nil
		case e.pending:
			return claimPending, nil
		default:
			return claimReplay, e
		}
	}

	s.entries[key] = &storedResponse{fingerprint: fingerprint, pending: true}
	return claimNew, nil
}

// finish stores the response of a claimed key. Server errors release the
// key instead so the client can try again.
func (s *IdempotencyStore) finish(key string, status int, headers http.Header, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status >= http.StatusInternalServerError {
		delete(s.entries, key)
		return
	}
	e := s.entries[key]
	if e == nil {
		return
	}
	e.status = status
	e.headers = headers
	e.body = body
	e.expiresAt = s.now().Add(s.ttl)
	e.pending = false
}

func hashParts(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter tees the response so it can be stored
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, e *storedResponse) {
	for k, v := range e.headers {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}

// Idempotency makes POST and PATCH requests carrying an Idempotency-Key
// safe to retry. A repeat from the same caller with the same method, path
// and body gets the stored response. Reusing a key for a different request
// is a 422, and a repeat that arrives while the first is still running is a
// 409 with Retry-After.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(idempotencyKey) > maxIdempotencyKeyLen {
				model.NewBadRequestError("Idempotency-Key is too long").WriteJSON(w)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				model.NewBadRequestError("Could not read request body").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := hashParts([]byte(rateLimitKey(r)), []byte(idempotencyKey))
			fingerprint := hashParts([]byte(r.Method), []byte(r.URL.Path), body)

			result, stored := store.claim(key, fingerprint)
			switch result {
			case claimReplay:
				metrics.IdempotentReplaysTotal.Inc()
				replay(w, stored)
				return
			case claimPending:
				w.Header().Set("Retry-After", "1")
				model.NewConflictError("A request with this Idempotency-Key is still being processed").WriteJSON(w)
				return
			case claimMismatch:
				model.NewUnprocessableError("Idempotency-Key was already used for a different request").WriteJSON(w)
				return
			}

			// a panic must not leave the key pending
			defer func() {
				if rec := recover(); rec != nil {
					store.finish(key, http.StatusInternalServerError, nil, nil)
					panic(rec)
				}
			}()

			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)
			store.finish(key, cw.status, cw.Header().Clone(), cw.body.Bytes())
		})
	}
}
