package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the workflow's Prometheus collectors.
// A nil *Metrics is valid and records nothing, which keeps call sites free of checks.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	fetchRetries  prometheus.Counter
	fetchFailures prometheus.Counter
	uploadBytes   prometheus.Counter
}

// New creates the collectors and registers them on reg.
// Duration buckets default to prometheus.DefBuckets when none are given.
func New(reg prometheus.Registerer, durationBuckets []float64) *Metrics {
	if len(durationBuckets) == 0 {
		durationBuckets = prometheus.DefBuckets
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Workflow runs by final status.",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Histogram of workflow run durations.",
				Buckets:   durationBuckets,
			},
		),
		fetchRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Retried requests to the weather API.",
			},
		),
		fetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Weather API requests that failed after all retries.",
			},
		),
		uploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_bytes_total",
				Help:      "Bytes of CSV written to storage.",
			},
		),
	}

	reg.MustRegister(m.runs, m.runDuration, m.fetchRetries, m.fetchFailures, m.uploadBytes)
	return m
}

func (m *Metrics) ObserveRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) AddFetchRetry() {
	if m == nil {
		return
	}
	m.fetchRetries.Inc()
}

func (m *Metrics) AddFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

func (m *Metrics) AddUploadBytes(n int) {
	if m == nil {
		return
	}
	m.uploadBytes.Add(float64(n))
}
