// Package metric exposes sparsego operations as Prometheus metrics.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/sparsego"
)

var _ sparsego.MetricsCollector = (*PrometheusCollector)(nil)

// PrometheusCollector implements sparsego.MetricsCollector with Prometheus
// counters and histograms.
type PrometheusCollector struct {
	AddsTotal        *prometheus.CounterVec
	BuildsTotal      *prometheus.CounterVec
	BuildDuration    prometheus.Histogram
	PostingsIndexed  prometheus.Counter
	LoadsTotal       *prometheus.CounterVec
	SearchesTotal    *prometheus.CounterVec
	SearchLatency    *prometheus.HistogramVec
	SearchResultSize prometheus.Histogram
}

// NewPrometheusCollector creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusCollector{
		AddsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparsego_adds_total",
				Help: "Documents offered to the indexer by status.",
			},
			[]string{"status"},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparsego_builds_total",
				Help: "Index builds by status.",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sparsego_build_duration_seconds",
				Help:    "Index build latency in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		PostingsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sparsego_postings_indexed_total",
				Help: "Postings compiled by successful builds.",
			},
		),
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparsego_loads_total",
				Help: "Index loads by mode and status.",
			},
			[]string{"mode", "status"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sparsego_searches_total",
				Help: "Searches by algorithm and status.",
			},
			[]string{"algorithm", "status"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sparsego_search_latency_seconds",
				Help:    "Search latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"algorithm"},
		),
		SearchResultSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sparsego_search_results",
				Help:    "Number of documents returned per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
		),
	}

	reg.MustRegister(
		m.AddsTotal,
		m.BuildsTotal,
		m.BuildDuration,
		m.PostingsIndexed,
		m.LoadsTotal,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultSize,
	)
	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordAdd implements sparsego.MetricsCollector.
func (m *PrometheusCollector) RecordAdd(_ time.Duration, err error) {
	m.AddsTotal.WithLabelValues(status(err)).Inc()
}

// RecordBuild implements sparsego.MetricsCollector.
func (m *PrometheusCollector) RecordBuild(postings uint64, duration time.Duration, err error) {
	m.BuildsTotal.WithLabelValues(status(err)).Inc()
	m.BuildDuration.Observe(duration.Seconds())
	if err == nil {
		m.PostingsIndexed.Add(float64(postings))
	}
}

// RecordLoad implements sparsego.MetricsCollector.
func (m *PrometheusCollector) RecordLoad(inMemory bool, _ time.Duration, err error) {
	mode := "mapped"
	if inMemory {
		mode = "memory"
	}
	m.LoadsTotal.WithLabelValues(mode, status(err)).Inc()
}

// RecordSearch implements sparsego.MetricsCollector.
func (m *PrometheusCollector) RecordSearch(algorithm string, _, results int, duration time.Duration, err error) {
	m.SearchesTotal.WithLabelValues(algorithm, status(err)).Inc()
	m.SearchLatency.WithLabelValues(algorithm).Observe(duration.Seconds())
	if err == nil {
		m.SearchResultSize.Observe(float64(results))
	}
}
