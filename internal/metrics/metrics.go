// Package metrics holds the Prometheus collectors for the ledger and the
// reward engine. Every observer is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	postings        *prometheus.CounterVec
	distributions   *prometheus.CounterVec
	tokensCredited  *prometheus.CounterVec
	creditFailures  *prometheus.CounterVec
	undistributed   *prometheus.CounterVec
	distributionDur prometheus.Histogram
	notifyFailures  *prometheus.CounterVec
}

// New builds the collectors and registers them with reg. A nil registerer
// yields collectors that are tracked but never exported.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_ledger_postings_total",
			Help: "Ledger postings by currency, direction and outcome.",
		}, []string{"currency", "direction", "outcome"}),
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_distributions_total",
			Help: "Reward distributions by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		tokensCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_reward_tokens_credited_total",
			Help: "Reward tokens credited by beneficiary role.",
		}, []string{"role"}),
		creditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_reward_credit_failures_total",
			Help: "Failed reward credits by beneficiary role.",
		}, []string{"role"}),
		undistributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_reward_tokens_undistributed_total",
			Help: "Minted tokens left uncredited because the share had no recipient.",
		}, []string{"share"}),
		distributionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "giftstream_distribution_duration_seconds",
			Help:    "Wall time of one reward distribution.",
			Buckets: prometheus.DefBuckets,
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "giftstream_notification_failures_total",
			Help: "Notifications that could not be published, by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.postings,
			m.distributions,
			m.tokensCredited,
			m.creditFailures,
			m.undistributed,
			m.distributionDur,
			m.notifyFailures,
		)
	}
	return m
}

func (m *Metrics) ObservePosting(currency string, amount int64, outcome string) {
	if m == nil {
		return
	}
	direction := "credit"
	if amount < 0 {
		direction = "debit"
	}
	m.postings.WithLabelValues(currency, direction, outcome).Inc()
}

func (m *Metrics) ObserveDistribution(kind, outcome string, started time.Time) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.distributions.WithLabelValues(kind, outcome).Inc()
	if !started.IsZero() {
		m.distributionDur.Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) ObserveCredit(role string, amount int64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.creditFailures.WithLabelValues(role).Inc()
		return
	}
	m.tokensCredited.WithLabelValues(role).Add(float64(amount))
}

func (m *Metrics) ObserveUndistributed(share string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.undistributed.WithLabelValues(share).Add(float64(amount))
}

func (m *Metrics) ObserveNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(kind).Inc()
}
