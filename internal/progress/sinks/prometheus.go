package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/infofi-harvester/internal/progress"
)

// PrometheusSink exports session progress via Prometheus.
type PrometheusSink struct {
	sessionsRunning prometheus.Gauge
	sessionsDone    *prometheus.CounterVec
	sessionRuntime  prometheus.Histogram
	seedsDone       prometheus.Counter

	pages        *prometheus.CounterVec
	pageBytes    *prometheus.CounterVec
	pageDuration *prometheus.HistogramVec
	records      *prometheus.CounterVec
	enriched     prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_sessions_running",
			Help: "Current number of running harvest sessions.",
		}),
		sessionsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_sessions_completed_total",
			Help: "Sessions completed partitioned by result.",
		}, []string{"result"}),
		sessionRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_session_runtime_seconds",
			Help:    "Wall time per completed session.",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		seedsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_seeds_completed_total",
			Help: "Seeds whose frontier has been exhausted.",
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_progress_pages_total",
			Help: "Frontier nodes finished partitioned by site and outcome.",
		}, []string{"site", "outcome"}),
		pageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_page_bytes_total",
			Help: "Document bytes fetched per site.",
		}, []string{"site"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_page_duration_seconds",
			Help:    "Fetch-to-extraction time per page partitioned by status class.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}, []string{"status_class"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_progress_records_total",
			Help: "Records extracted per site.",
		}, []string{"site"}),
		enriched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_progress_enriched_total",
			Help: "Records enriched with social data.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsRunning, s.sessionsDone, s.sessionRuntime, s.seedsDone,
		s.pages, s.pageBytes, s.pageDuration, s.records, s.enriched,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsRunning.Inc()
	case progress.StageSessionDone, progress.StageSessionError:
		result := "success"
		if evt.Stage == progress.StageSessionError {
			result = "error"
		}
		s.sessionsRunning.Dec()
		s.sessionsDone.WithLabelValues(result).Inc()
		if evt.Dur > 0 {
			s.sessionRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageSeedDone:
		s.seedsDone.Inc()
	case progress.StagePageDone:
		s.pages.WithLabelValues(site, "done").Inc()
		if evt.Bytes > 0 {
			s.pageBytes.WithLabelValues(site).Add(float64(evt.Bytes))
		}
		if evt.Records > 0 {
			s.records.WithLabelValues(site).Add(float64(evt.Records))
		}
		if evt.Dur > 0 {
			s.pageDuration.WithLabelValues(string(evt.StatusClass)).Observe(evt.Dur.Seconds())
		}
	case progress.StagePageFailed:
		s.pages.WithLabelValues(site, "failed").Inc()
	case progress.StagePageSkipped:
		s.pages.WithLabelValues(site, "skipped").Inc()
	case progress.StageEnrichDone:
		s.enriched.Add(float64(evt.Records))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
