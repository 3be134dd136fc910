// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ReviewsAnalyzedTotal *prometheus.CounterVec
	UploadsTotal         *prometheus.CounterVec
	ScoringLatency       *prometheus.HistogramVec
	SummaryCacheHits     prometheus.Counter
	SummaryCacheMisses   prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ReviewsAnalyzedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_analyzed_total",
				Help: "Total reviews scored, by label (genuine, suspicious).",
			},
			[]string{"label"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Total file uploads by outcome (scored, degraded, rejected, failed).",
			},
			[]string{"outcome"},
		),
		ScoringLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scoring_request_duration_seconds",
				Help:    "Latency of calls to the scoring service in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		SummaryCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "summary_cache_hits_total",
				Help: "Total latest-summary reads served from Redis.",
			},
		),
		SummaryCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "summary_cache_misses_total",
				Help: "Total latest-summary reads that fell through to the blob store.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ReviewsAnalyzedTotal,
		m.UploadsTotal,
		m.ScoringLatency,
		m.SummaryCacheHits,
		m.SummaryCacheMisses,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
