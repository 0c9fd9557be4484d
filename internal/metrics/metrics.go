// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvesterPagesTotal             *prometheus.CounterVec
	harvesterRecordsTotal           *prometheus.CounterVec
	harvesterCollaboratorCallsTotal *prometheus.CounterVec
	harvesterCollaboratorDuration   *prometheus.HistogramVec
	harvesterEnrichmentTotal        *prometheus.CounterVec
	harvesterRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal               *prometheus.CounterVec
	httpRequestDurationSeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvesterPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Frontier nodes processed, labeled by site and terminal state.",
			},
			[]string{"site", "state"},
		)

		harvesterRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_records_total",
				Help: "User records extracted, labeled by site.",
			},
			[]string{"site"},
		)

		harvesterCollaboratorCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_collaborator_calls_total",
				Help: "Calls to external collaborators, labeled by collaborator, operation and outcome.",
			},
			[]string{"collaborator", "op", "outcome"},
		)

		harvesterCollaboratorDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_collaborator_duration_seconds",
				Help:    "Latency of external collaborator calls.",
				Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 15, 30, 60, 120},
			},
			[]string{"collaborator", "op"},
		)

		harvesterEnrichmentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_enrichment_total",
				Help: "Enrichment attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		harvesterRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"key"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage counts a processed frontier node by terminal state.
func ObservePage(site, state string) {
	Init()
	harvesterPagesTotal.WithLabelValues(SanitizeSite(site), state).Inc()
}

// ObserveRecords counts records extracted from a page.
func ObserveRecords(site string, n int) {
	if n <= 0 {
		return
	}
	Init()
	harvesterRecordsTotal.WithLabelValues(SanitizeSite(site)).Add(float64(n))
}

// ObserveCollaboratorCall records one call to an external collaborator.
func ObserveCollaboratorCall(collaborator, op string, err error, duration time.Duration) {
	Init()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	harvesterCollaboratorCallsTotal.WithLabelValues(collaborator, op, outcome).Inc()
	harvesterCollaboratorDuration.WithLabelValues(collaborator, op).Observe(duration.Seconds())
}

// ObserveEnrichment counts an enrichment outcome (enriched, failed, skipped).
func ObserveEnrichment(outcome string) {
	Init()
	harvesterEnrichmentTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(key string, duration time.Duration) {
	Init()
	harvesterRateLimitDelaysSeconds.WithLabelValues(key).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
