package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsEnqueued    prometheus.Counter
	ItemsExecuted    *prometheus.CounterVec
	ExecutionLatency prometheus.Histogram
	RoundsExecuted   prometheus.Counter
	RoundSize        prometheus.Histogram
	ActiveLoops      prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_enqueued_total",
			Help: "Total number of items added to any queue.",
		}),

		ItemsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_items_executed_total",
			Help: "Total number of execution attempts by outcome.",
		}, []string{"outcome"}),

		ExecutionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queue_item_execution_seconds",
			Help:    "Execution latency from processing transition to completion.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		RoundsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_rounds_total",
			Help: "Total number of scheduling rounds executed.",
		}),

		RoundSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "queue_round_size",
			Help:    "Number of items executed per round.",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),

		ActiveLoops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_active_loops",
			Help: "Number of scheduling loops currently running.",
		}),
	}

	reg.MustRegister(
		m.ItemsEnqueued,
		m.ItemsExecuted,
		m.ExecutionLatency,
		m.RoundsExecuted,
		m.RoundSize,
		m.ActiveLoops,
	)

	return m
}

// ExecutorHooks returns the metric callbacks expected by the executor.
// Centralises the prometheus observation calls so the executor stays
// import-free.
func (m *Metrics) ExecutorHooks() (
	onCompleted func(latency time.Duration),
	onFailed func(),
) {
	onCompleted = func(latency time.Duration) {
		m.ItemsExecuted.WithLabelValues("completed").Inc()
		m.ExecutionLatency.Observe(latency.Seconds())
	}
	onFailed = func() {
		m.ItemsExecuted.WithLabelValues("failed").Inc()
	}
	return
}

// RunnerHooks returns the metric callbacks expected by the loop runner.
func (m *Metrics) RunnerHooks() (
	onRound func(size int),
	onLoopDelta func(delta int),
) {
	onRound = func(size int) {
		m.RoundsExecuted.Inc()
		m.RoundSize.Observe(float64(size))
	}
	onLoopDelta = func(delta int) {
		m.ActiveLoops.Add(float64(delta))
	}
	return
}
