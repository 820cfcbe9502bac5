// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onstream_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"route"},
	)

	ResponseCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_response_cache_total",
			Help: "Redis response cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	// Cache-aside resolver. kind is "title" or "streams"; result is hit, miss or stale.
	ResolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_resolve_total",
			Help: "Cache-aside resolutions by record kind and result",
		},
		[]string{"kind", "result"},
	)

	// Upstream providers
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_upstream_requests_total",
			Help: "Requests sent to third-party providers by outcome",
		},
		[]string{"provider", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onstream_upstream_request_duration_seconds",
			Help:    "Latency of third-party provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	UpstreamCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_upstream_cache_total",
			Help: "In-process upstream response cache lookups by result",
		},
		[]string{"provider", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "onstream_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Messaging
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_events_published_total",
			Help: "Messages published to RabbitMQ by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	CachePurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onstream_cache_purged_documents_total",
			Help: "Expired cache documents removed by collection",
		},
		[]string{"collection"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpstream records one provider call.
func RecordUpstream(provider, outcome string, d time.Duration) {
	UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	UpstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
}
