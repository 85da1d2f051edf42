package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingHandler answers 201 with a body naming the call number
type countingHandler struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)
	if h.gate != nil {
		<-h.gate
	}
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/v1/workshops/workshop:1")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"call":%d,"echo":%s}`, n, body)
}

func idempotentRequest(method, key, body string) *http.Request {
	req := httptest.NewRequest(method, "/v1/workshops", bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	req.RemoteAddr = "203.0.113.9:4000"
	return req
}

func TestIdempotency_ReplaysSameRequest(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()
	next := &countingHandler{}
	h := Idempotency(store)(next)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idempotentRequest(http.MethodPost, "k1", `{"a":1}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest(http.MethodPost, "k1", `{"a":1}`))

	if next.calls.Load() != 1 {
		t.Fatalf("expected one call, got %d", next.calls.Load())
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed response, got %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected replay marker")
	}
	if second.Header().Get("Location") != "/v1/workshops/workshop:1" {
		t.Error("expected original headers on replay")
	}
	if first.Header().Get("X-Idempotency-Replayed") != "" {
		t.Error("first response must not be marked as replayed")
	}
}

func TestIdempotency_Bypass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		key    string
	}{
		{"GET", http.MethodGet, "k"},
		{"DELETE", http.MethodDelete, "k"},
		{"no key", http.MethodPost, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
			defer store.Stop()
			next := &countingHandler{}
			h := Idempotency(store)(next)

			h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(tt.method, tt.key, `{}`))
			h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(tt.method, tt.key, `{}`))

			if next.calls.Load() != 2 {
				t.Errorf("expected both requests to reach the handler, got %d", next.calls.Load())
			}
		})
	}
}

func TestIdempotency_KeyReusedForOtherRequest(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()
	next := &countingHandler{}
	h := Idempotency(store)(next)

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k", `{"seats":1}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idempotentRequest(http.MethodPost, "k", `{"seats":2}`))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rr.Code)
	}
	if next.calls.Load() != 1 {
		t.Errorf("expected the second request to be rejected, got %d calls", next.calls.Load())
	}
}

func TestIdempotency_KeysAreScopedToCaller(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()
	next := &countingHandler{}
	h := Idempotency(store)(next)

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k", `{}`))
	other := idempotentRequest(http.MethodPost, "k", `{}`)
	other.RemoteAddr = "203.0.113.10:4000"
	h.ServeHTTP(httptest.NewRecorder(), other)

	if next.calls.Load() != 2 {
		t.Errorf("expected a separate key space per caller, got %d calls", next.calls.Load())
	}
}

func TestIdempotency_RejectsLongKey(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	rr := httptest.NewRecorder()
	Idempotency(store)(&countingHandler{}).ServeHTTP(rr, idempotentRequest(http.MethodPost, strings.Repeat("k", 256), `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestIdempotency_ServerErrorIsNotStored(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()

	calls := 0
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idempotentRequest(http.MethodPost, "k", `{}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest(http.MethodPost, "k", `{}`))

	if calls != 2 || second.Code != http.StatusCreated {
		t.Errorf("expected the retry to run, calls %d status %d", calls, second.Code)
	}
}

func TestIdempotency_RestoresBody(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()

	rr := httptest.NewRecorder()
	Idempotency(store)(&countingHandler{}).ServeHTTP(rr, idempotentRequest(http.MethodPatch, "k", `{"title":"Raku"}`))

	if !bytes.Contains(rr.Body.Bytes(), []byte(`"echo":{"title":"Raku"}`)) {
		t.Errorf("handler did not see the body: %s", rr.Body.String())
	}
}

func TestIdempotency_ExpiredEntryRunsAgain(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Minute, Cleanup: time.Hour})
	defer store.Stop()
	clock := &fixedClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	next := &countingHandler{}
	h := Idempotency(store)(next)

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k", `{}`))
	clock.Advance(2 * time.Minute)

	store.sweep()
	store.mu.Lock()
	left := len(store.entries)
	store.mu.Unlock()
	if left != 0 {
		t.Errorf("expected the sweep to drop the expired entry, %d left", left)
	}

	h.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "k", `{}`))
	if next.calls.Load() != 2 {
		t.Errorf("expected expired entry to be ignored, got %d calls", next.calls.Load())
	}
}

func TestIdempotency_ConcurrentRepeatConflicts(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Hour})
	defer store.Stop()
	next := &countingHandler{gate: make(chan struct{})}
	h := Idempotency(store)(next)

	first := httptest.NewRecorder()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.ServeHTTP(first, idempotentRequest(http.MethodPost, "same", `{}`))
	}()

	// wait until the first request holds the key
	for next.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, idempotentRequest(http.MethodPost, "same", `{}`))
	close(next.gate)
	wg.Wait()

	if first.Code != http.StatusCreated {
		t.Errorf("first request: expected 201, got %d", first.Code)
	}
	if second.Code != http.StatusConflict || second.Header().Get("Retry-After") != "1" {
		t.Errorf("second request: expected 409 with Retry-After, got %d %v", second.Code, second.Header())
	}

	third := httptest.NewRecorder()
	h.ServeHTTP(third, idempotentRequest(http.MethodPost, "same", `{}`))
	if third.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected a replay once the first request finished")
	}
	if next.calls.Load() != 1 {
		t.Errorf("expected one handler call, got %d", next.calls.Load())
	}
}
