package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookinggate"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the upstream booking API by method and status code.",
		},
		[]string{"method", "code"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream booking API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	blockOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_block_outcomes_total",
			Help:      "Schedule block operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	domainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events published by type.",
		},
		[]string{"type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, upstreamRequests, upstreamDuration, blockOutcomes, domainEvents)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncBlockOutcome counts one schedule block result, e.g. ("create", "failed").
func IncBlockOutcome(operation, outcome string) {
	blockOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AddBlockOutcomes counts n results at once.
func AddBlockOutcomes(operation, outcome string, n int) {
	if n <= 0 {
		return
	}
	blockOutcomes.WithLabelValues(operation, outcome).Add(float64(n))
}

// IncEvent increments the counter for a domain event type.
func IncEvent(eventType string) {
	domainEvents.WithLabelValues(eventType).Inc()
}

// InstrumentTransport wraps next with request counting and latency observation.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(upstreamRequests,
		promhttp.InstrumentRoundTripperDuration(upstreamDuration, next))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
