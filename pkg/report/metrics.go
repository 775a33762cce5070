package report

import (
	"github.com/convergefm/converge/pkg/evaluator"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig controls the namespace and enablement of the Prometheus
// sink, grounded on the teacher's telemetry.MetricsConfig.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// Metrics is a Reporter that exposes per-subtype/per-outcome counters and a
// pass-duration histogram, grounded on pkg/telemetry/metrics.go's
// CounterVec/HistogramVec shape, reframed from run/resource labels to
// bundle/subtype/outcome labels.
type Metrics struct {
	cfg MetricsConfig

	outcomes     *prometheus.CounterVec
	passDuration prometheus.Histogram
	registry     *prometheus.Registry
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{cfg: cfg}
	}
	registry := prometheus.NewRegistry()
	m := &Metrics{
		cfg:      cfg,
		registry: registry,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "promise_outcomes_total",
			Help:      "Total promise dispatch outcomes by bundle, subtype and outcome.",
		}, []string{"bundle", "subtype", "outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of one evaluator pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(m.outcomes, m.passDuration)
	return m
}

// Report implements evaluator.Reporter.
func (m *Metrics) Report(rec evaluator.Record) {
	if !m.cfg.Enabled {
		return
	}
	m.outcomes.WithLabelValues(rec.Bundle, rec.Subtype, string(rec.Outcome)).Inc()
}

// ObservePassDuration records one pass's wall-clock time in seconds.
func (m *Metrics) ObservePassDuration(seconds float64) {
	if !m.cfg.Enabled {
		return
	}
	m.passDuration.Observe(seconds)
}

// Registry exposes the underlying Prometheus registry for an HTTP handler
// mount, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
