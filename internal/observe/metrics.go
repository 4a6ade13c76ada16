package observe

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments of the document store and chat loop.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry      *prometheus.Registry
	Queries       prometheus.Counter
	QueryDuration prometheus.Histogram
	Documents     prometheus.Gauge
	IngestRecords *prometheus.CounterVec
	Turns         *prometheus.CounterVec
}

// NewMetrics registers the instruments on a private registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Queries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Similarity queries against the document store.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of similarity queries including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),
		Documents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Documents currently held by the store.",
		}),
		IngestRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Bulk-load records by result.",
		}, []string{"result"}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by result.",
		}, []string{"result"}),
	}
}

// ObserveQuery records one query and its latency.
func (m *Metrics) ObserveQuery(d time.Duration) {
	if m == nil {
		return
	}
	m.Queries.Inc()
	m.QueryDuration.Observe(d.Seconds())
}

// SetDocuments records the current store size.
func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.Documents.Set(float64(n))
}

// IngestRecord counts one bulk-load record ("inserted", "overwritten", "skipped").
func (m *Metrics) IngestRecord(result string) {
	if m == nil {
		return
	}
	m.IngestRecords.WithLabelValues(result).Inc()
}

// Turn counts one chat turn ("ok", "error", "canceled").
func (m *Metrics) Turn(result string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
