package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRelayMetrics_RecordSubmission(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.RecordSubmission(OutcomeSent)
	m.RecordSubmission(OutcomeSent)
	m.RecordSubmission(OutcomeInvalid)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeHoneypot)))
}

func TestRelayMetrics_ObserveUpstream(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg)

	m.ObserveUpstream(CallToken, time.Now(), nil)
	m.ObserveUpstream(CallSend, time.Now(), errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.UpstreamDuration))
}

func TestRelayMetrics_Nil(t *testing.T) {
	var m *RelayMetrics
	assert.NotPanics(t, func() {
		m.RecordSubmission(OutcomeSent)
		m.ObserveUpstream(CallSend, time.Now(), nil)
	})
}
