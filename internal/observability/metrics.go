// Package observability holds the Prometheus instruments for the
// verification pipeline and the /metrics handler.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
//
// A nil *Metrics is valid: every method is a no-op, so components can
// run without instrumentation in tests.
type Metrics struct {
	QueriesTotal           *prometheus.CounterVec
	QueryDuration          prometheus.Histogram
	EvidenceSearchFailures *prometheus.CounterVec
	MemoryReinforcements   prometheus.Counter
	MemoryWriteFailures    prometheus.Counter
	GeneratorFallbacks     prometheus.Counter
}

// NewMetrics registers all instruments against the given registerer.
// Passing a fresh prometheus.NewRegistry() keeps tests isolated from
// the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Processed verification queries by verdict.",
		}, []string{"verdict"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end verification query latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		EvidenceSearchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evidence_search_failures_total",
			Help:      "Evidence searches that returned an error, by collection.",
		}, []string{"collection"}),
		MemoryReinforcements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_reinforcements_total",
			Help:      "Memory records reinforced on recall.",
		}),
		MemoryWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_write_failures_total",
			Help:      "Memory payload write-backs that failed.",
		}),
		GeneratorFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_fallbacks_total",
			Help:      "Responses served from the rule-based fallback.",
		}),
	}
}

// ObserveQuery records one completed query.
func (m *Metrics) ObserveQuery(verdict string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(verdict).Inc()
	m.QueryDuration.Observe(d.Seconds())
}

// IncSearchFailure records a failed evidence search for a collection.
func (m *Metrics) IncSearchFailure(collection string) {
	if m == nil {
		return
	}
	m.EvidenceSearchFailures.WithLabelValues(collection).Inc()
}

// IncReinforcement records one successful memory reinforcement.
func (m *Metrics) IncReinforcement() {
	if m == nil {
		return
	}
	m.MemoryReinforcements.Inc()
}

// IncMemoryWriteFailure records a failed reinforcement write-back.
func (m *Metrics) IncMemoryWriteFailure() {
	if m == nil {
		return
	}
	m.MemoryWriteFailures.Inc()
}

// IncGeneratorFallback records a response served without the generator.
func (m *Metrics) IncGeneratorFallback() {
	if m == nil {
		return
	}
	m.GeneratorFallbacks.Inc()
}

// Handler returns the HTTP handler exposing the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
