// Package metrics exposes Prometheus collectors for the ratings service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	headlessPromotionsTotal    prometheus.Counter
	ingestRunsTotal            *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitRejectionsTotal   prometheus.Counter
	requestLogsPurgedTotal     prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratings_pages_fetched_total",
				Help: "Total pages fetched, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)
		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratings_headless_promotions_total",
				Help: "Probe fetches promoted to the headless browser.",
			},
		)
		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratings_ingest_runs_total",
				Help: "Ingest runs, labeled by category and result.",
			},
			[]string{"category", "result"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "API request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)
		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratings_rate_limit_rejections_total",
				Help: "Requests rejected by the per-caller rate limit.",
			},
		)
		requestLogsPurgedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratings_request_logs_purged_total",
				Help: "Request log entries removed by retention cleanup.",
			},
		)
	})
}

// ObservePageFetch records one page fetch outcome.
func ObservePageFetch(category, outcome string) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(category, outcome).Inc()
}

// IncHeadlessPromotion records a probe response promoted to headless.
func IncHeadlessPromotion() {
	if headlessPromotionsTotal == nil {
		return
	}
	headlessPromotionsTotal.Inc()
}

// ObserveIngestRun records the result of one ingest run.
func ObserveIngestRun(category, result string) {
	if ingestRunsTotal == nil {
		return
	}
	ingestRunsTotal.WithLabelValues(category, result).Inc()
}

// ObserveHTTPRequest records an API request and its latency.
func ObserveHTTPRequest(method string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}

// IncRateLimitRejection records a 429 rejection.
func IncRateLimitRejection() {
	if rateLimitRejectionsTotal == nil {
		return
	}
	rateLimitRejectionsTotal.Inc()
}

// AddRequestLogsPurged records entries deleted by retention cleanup.
func AddRequestLogsPurged(n int) {
	if requestLogsPurgedTotal == nil || n <= 0 {
		return
	}
	requestLogsPurgedTotal.Add(float64(n))
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
