// Package metrics exposes Prometheus collectors for the enforcement
// pipeline: verdict counts per component, violation counts per kind, and
// the current session phase.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/understandly/lockdownd/internal/model"
)

// Metrics bundles the engine's collectors around one registry.
type Metrics struct {
	Registry *prometheus.Registry

	verdicts   *prometheus.CounterVec
	violations *prometheus.CounterVec
	phase      prometheus.Gauge
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockdownd",
			Name:      "verdicts_total",
			Help:      "Guard verdicts by component and decision.",
		}, []string{"component", "decision"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockdownd",
			Name:      "violations_total",
			Help:      "Violation records by kind and severity.",
		}, []string{"kind", "severity"}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockdownd",
			Name:      "session_phase",
			Help:      "Current session phase (0=initializing 1=active 2=violated 3=terminated).",
		}),
	}

	reg.MustRegister(m.verdicts, m.violations, m.phase)
	return m
}

// Verdict counts one guard verdict.
func (m *Metrics) Verdict(component string, decision model.Decision) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(component, string(decision)).Inc()
}

// Violation counts one recorded violation.
func (m *Metrics) Violation(kind model.ViolationKind, severity model.Severity) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(string(kind), string(severity)).Inc()
}

// Phase records the current session phase.
func (m *Metrics) Phase(p model.Phase) {
	if m == nil {
		return
	}
	m.phase.Set(float64(p))
}
