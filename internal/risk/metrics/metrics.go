// Package metrics exposes Prometheus metrics for the risk accumulator.
// Methods are nil-safe so tests can pass a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsApplied    *prometheus.CounterVec
	LevelTransitions *prometheus.CounterVec
	ClampSaturations prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keohams_risk_events_applied_total",
			Help: "Risk events applied by event type.",
		}, []string{"event_type"}),
		LevelTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keohams_risk_level_transitions_total",
			Help: "Risk level changes by resulting level.",
		}, []string{"to"}),
		ClampSaturations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keohams_risk_score_clamps_total",
			Help: "Events whose delta saturated the score bounds.",
		}),
	}
}

func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordLevelTransition(to string) {
	if m == nil {
		return
	}
	m.LevelTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RecordClamp() {
	if m == nil {
		return
	}
	m.ClampSaturations.Inc()
}
