package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes, used as the outcome label.
const (
	OutcomeSent     = "sent"
	OutcomeHoneypot = "honeypot"
	OutcomeInvalid  = "invalid"
	OutcomeConfig   = "config"
	OutcomeAuth     = "auth"
	OutcomeDelivery = "delivery"
	OutcomeInternal = "internal"
)

// Upstream calls, used as the call label.
const (
	CallToken = "token"
	CallSend  = "send"
)

// RelayMetrics holds Prometheus metrics for the contact relay.
// A nil *RelayMetrics is valid and records nothing.
type RelayMetrics struct {
	Submissions      *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// NewRelayMetrics creates the relay metrics and registers them with reg.
// A nil reg registers with the default registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &RelayMetrics{
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_submissions_total",
				Help: "Contact form submissions by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_upstream_duration_seconds",
				Help:    "Duration of calls to the identity provider and mail API",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"call", "result"},
		),
	}
}

// RecordSubmission counts one submission with the given outcome.
func (m *RelayMetrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records how long an upstream call took since start.
func (m *RelayMetrics) ObserveUpstream(call string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamDuration.WithLabelValues(call, result).Observe(time.Since(start).Seconds())
}
