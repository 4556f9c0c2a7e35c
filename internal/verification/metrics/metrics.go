// Package metrics exposes Prometheus metrics for the verification feature.
// Methods are nil-safe so tests can pass a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GateDecisions   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	EnsureConflicts prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		GateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keohams_verification_gate_decisions_total",
			Help: "Access gate outcomes by reason.",
		}, []string{"reason"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keohams_verification_transitions_total",
			Help: "Verification status transitions by target status.",
		}, []string{"to"}),
		EnsureConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keohams_verification_ensure_conflicts_total",
			Help: "First-access insert races resolved by fetching the winner's row.",
		}),
	}
}

func (m *Metrics) RecordGateDecision(reason string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RecordEnsureConflict() {
	if m == nil {
		return
	}
	m.EnsureConflicts.Inc()
}
