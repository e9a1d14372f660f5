package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful incident analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses rejected for malformed input.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_agent",
			Name:      "analyses_total",
			Help:      "Total number of incident analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel_agent",
			Name:      "analysis_seconds",
			Help:      "Incident analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	taskAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_agent",
			Name:      "task_attempts_total",
			Help:      "Analyzer attempts, partitioned by task type and outcome.",
		},
		[]string{"task_type", "outcome"},
	)

	tasksAbandonedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_agent",
			Name:      "tasks_abandoned_total",
			Help:      "Tasks abandoned before producing a usable result, partitioned by reason.",
		},
		[]string{"reason"},
	)
)

// Register attaches sentinel-agent collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		taskAttemptsTotal,
		tasksAbandonedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveTaskAttempt counts one terminal analyzer attempt.
func ObserveTaskAttempt(taskType string, succeeded bool) {
	outcome := OutcomeError
	if succeeded {
		outcome = OutcomeSuccess
	}
	taskAttemptsTotal.WithLabelValues(taskType, outcome).Inc()
}

// ObserveTaskAbandoned counts one abandoned task by reason.
func ObserveTaskAbandoned(reason string) {
	tasksAbandonedTotal.WithLabelValues(reason).Inc()
}
