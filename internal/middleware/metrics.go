package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/forgo/atelier/internal/metrics"
)

// unmatchedRoute labels requests no route pattern matched, keeping the
// label set bounded
const unmatchedRoute = "unmatched"

// Metrics counts requests and observes latency by route pattern. It reads
// the pattern the ServeMux stores on the request, so it must wrap the mux
// directly.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
