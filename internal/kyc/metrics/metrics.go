// Package metrics exposes Prometheus metrics for the KYC feature. Methods
// are nil-safe so tests can pass a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SubmissionsCreated prometheus.Counter
	Reviews            *prometheus.CounterVec
	ReviewLatency      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		SubmissionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "keohams_kyc_submissions_created_total",
			Help: "KYC submissions accepted.",
		}),
		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keohams_kyc_reviews_total",
			Help: "Admin review decisions by outcome.",
		}, []string{"decision"}),
		ReviewLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "keohams_kyc_review_latency_seconds",
			Help:    "Time from submission to review decision.",
			Buckets: prometheus.ExponentialBuckets(60, 4, 8),
		}),
	}
}

func (m *Metrics) RecordSubmission() {
	if m == nil {
		return
	}
	m.SubmissionsCreated.Inc()
}

func (m *Metrics) RecordReview(decision string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObserveReviewLatency(seconds float64) {
	if m == nil {
		return
	}
	m.ReviewLatency.Observe(seconds)
}
