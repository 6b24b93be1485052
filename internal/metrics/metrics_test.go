package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, nil)

	m.ObserveRun("succeeded", 0.5)
	m.ObserveRun("failed", 1.5)
	m.ObserveRun("failed", 2)
	m.AddFetchRetry()
	m.AddFetchFailure()
	m.AddUploadBytes(120)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.uploadBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRun("succeeded", 1)
		m.AddFetchRetry()
		m.AddFetchFailure()
		m.AddUploadBytes(1)
	})
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, []float64{1, 5, 10})

	assert.Panics(t, func() { New(reg, nil) })
}
