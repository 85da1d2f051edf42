// Package metrics holds the Prometheus collectors of the Atelier API.
// Collectors register with the default registry on package init and are
// served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atelier"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "SurrealDB query latency by outcome (ok, rejected, error)",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"outcome"})

	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Workshop registration attempts by outcome",
	}, []string{"outcome"})

	WaitlistPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "waitlist_promotions_total",
		Help:      "Waiting list entries promoted to registrations",
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Transactional emails by result (sent, failed, disabled)",
	}, []string{"result"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter by limit class",
	}, []string{"class"})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotent_replays_total",
		Help:      "Responses replayed for a repeated Idempotency-Key",
	})

	JobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Background job runs by job and result",
	}, []string{"job", "result"})
)

// Registration outcomes beyond model.RegistrationOutcome
const (
	OutcomeRejected = "rejected"
)

// Email results
const (
	EmailSent     = "sent"
	EmailFailed   = "failed"
	EmailDisabled = "disabled"
)

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records a job run result
func ObserveJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRunsTotal.WithLabelValues(job, result).Inc()
}
