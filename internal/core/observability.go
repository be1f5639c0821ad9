package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"worldbuilder/pkg/domain"
)

// PrometheusMetricsRecorder publishes engine measurements to a prometheus
// registry: command outcomes per kind, operation durations, and document
// cache traffic (hits, loads, releases, evictions).
type PrometheusMetricsRecorder struct {
	durations   *prometheus.HistogramVec
	results     *prometheus.CounterVec
	cacheEvents *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with reg (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "worldbuilder",
			Name:      "operation_duration_seconds",
			Help:      "Duration of editor operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldbuilder",
			Name:      "command_results_total",
			Help:      "Command apply outcomes per command kind.",
		}, []string{"op", "outcome"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "worldbuilder",
			Name:      "document_cache_events_total",
			Help:      "Document cache traffic by event.",
		}, []string{"event"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.results, r.cacheEvents} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecordDuration implements domain.MetricsRecorder.
func (r *PrometheusMetricsRecorder) RecordDuration(op string, d time.Duration) {
	r.durations.WithLabelValues(op).Observe(d.Seconds())
}

// RecordResult implements domain.MetricsRecorder.
func (r *PrometheusMetricsRecorder) RecordResult(op, outcome string) {
	r.results.WithLabelValues(op, outcome).Inc()
}

// RecordCacheEvent implements domain.MetricsRecorder.
func (r *PrometheusMetricsRecorder) RecordCacheEvent(event string) {
	r.cacheEvents.WithLabelValues(event).Inc()
}

var _ domain.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
