package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the batch pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	matrices     *prometheus.CounterVec
	inFlight     prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests so repeated construction does not clash.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Labels: round (diagram, distance), outcome (computed, skipped, failed)
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topofp",
			Subsystem: "batch",
			Name:      "tasks_total",
			Help:      "Batch tasks finished, by round and outcome",
		}, []string{"round", "outcome"}),

		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "topofp",
			Subsystem: "batch",
			Name:      "task_duration_seconds",
			Help:      "Wall time of a single batch task",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"round"}),

		// Labels: metric (wasserstein, bottleneck), status (complete, aborted)
		matrices: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "topofp",
			Subsystem: "batch",
			Name:      "matrices_total",
			Help:      "Distance matrices assembled or aborted",
		}, []string{"metric", "status"}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "topofp",
			Subsystem: "batch",
			Name:      "tasks_in_flight",
			Help:      "Tasks currently held by workers",
		}),
	}
}

// ObserveTask records one finished task.
func (m *Metrics) ObserveTask(round, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(round, outcome).Inc()
	m.taskDuration.WithLabelValues(round).Observe(d.Seconds())
}

// ObserveMatrix records a finished or aborted distance matrix.
func (m *Metrics) ObserveMatrix(metric string, complete bool) {
	if m == nil {
		return
	}
	status := "complete"
	if !complete {
		status = "aborted"
	}
	m.matrices.WithLabelValues(metric, status).Inc()
}

// TaskStarted and TaskDone track the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) TaskDone() {
	if m != nil {
		m.inFlight.Dec()
	}
}
