// Package metrics defines the Prometheus metric collectors used by the
// search server and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	DocsIndexedTotal   prometheus.Counter
	IndexDocuments     prometheus.Gauge
	IndexTerms         prometheus.Gauge
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	ConnectionsTotal   *prometheus.CounterVec
	WatcherEventsTotal *prometheus.CounterVec
	PoolQueueDepth     prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed, including re-indexed files.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents in the inverted index.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of unique terms in the inverted index.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connections_total",
				Help: "Total handled connections by response status.",
			},
			[]string{"status"},
		),
		WatcherEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watcher_events_total",
				Help: "Total corpus watcher events by kind (create, modify).",
			},
			[]string{"kind"},
		),
		PoolQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pool_queue_depth",
				Help: "Jobs waiting in the worker pool queue.",
			},
		),
	}

	prometheus.MustRegister(
		m.DocsIndexedTotal,
		m.IndexDocuments,
		m.IndexTerms,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.ConnectionsTotal,
		m.WatcherEventsTotal,
		m.PoolQueueDepth,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
