package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	cancellationsTotal prometheus.Counter
	queueDepth         prometheus.Gauge
	tokensTotal        *prometheus.CounterVec
)

// EnsureRegistered registers all metrics on the process registry. Safe to
// call from every package that records metrics.
func EnsureRegistered() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()

		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_runs_total",
				Help: "Total agent runs by outcome",
			},
			[]string{"outcome"},
		)

		runDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quill_run_duration_seconds",
				Help:    "Agent run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		)

		cancellationsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quill_cancellations_total",
				Help: "Total cancellation requests that hit an active run",
			},
		)

		queueDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quill_prompt_queue_depth",
				Help: "Number of prompts waiting in the queue",
			},
		)

		tokensTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_tokens_total",
				Help: "Total tokens consumed by direction",
			},
			[]string{"direction"},
		)

		registry.MustRegister(runsTotal, runDuration, cancellationsTotal, queueDepth, tokensTotal)
	})
}

// RecordRun records one finished run with its outcome and duration.
func RecordRun(outcome string, seconds float64) {
	EnsureRegistered()
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(seconds)
}

// RecordCancellation counts a cancellation that reached an active run.
func RecordCancellation() {
	EnsureRegistered()
	cancellationsTotal.Inc()
}

// SetQueueDepth publishes the current queue depth.
func SetQueueDepth(n int) {
	EnsureRegistered()
	queueDepth.Set(float64(n))
}

// AddTokens accumulates token usage.
func AddTokens(input, output int) {
	EnsureRegistered()
	tokensTotal.WithLabelValues("input").Add(float64(input))
	tokensTotal.WithLabelValues("output").Add(float64(output))
}

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
