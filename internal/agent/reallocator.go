package agent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// Decision is the reallocator's verdict on a terminal attempt.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionRequeue Decision = "requeue"
	DecisionAbandon Decision = "abandon"
)

// Outcome captures one terminal attempt of an analyzer on a task.
type Outcome struct {
	Analyzer   string
	Succeeded  bool
	Confidence float64
	Duration   time.Duration
	Err        error
}

// DecisionInput is handed to the decision policy.
type DecisionInput struct {
	Task    *models.Task
	Outcome Outcome
	// AlternativeAvailable is true when the selector can still produce a
	// capable analyzer for a further attempt.
	AlternativeAvailable    bool
	RetryLimit              int
	MinAcceptableConfidence float64
}

// DecisionPolicy decides what happens to a task after a terminal attempt.
// Hosts inject their own policy to override thresholds without touching the
// core logic.
type DecisionPolicy func(DecisionInput) Decision

// DefaultDecisionPolicy accepts successes and degraded-but-usable failures,
// requeues within the retry budget while a capable analyzer remains, and
// abandons otherwise.
func DefaultDecisionPolicy(in DecisionInput) Decision {
	if in.Outcome.Succeeded {
		return DecisionAccept
	}
	if in.Outcome.Confidence > in.MinAcceptableConfidence {
		return DecisionAccept
	}
	if in.Task.Attempts < in.RetryLimit && in.AlternativeAvailable {
		return DecisionRequeue
	}
	return DecisionAbandon
}

type record struct {
	successes     int
	failures      int
	avgDuration   time.Duration
	avgConfidence float64
	seeded        bool
}

// ReallocatorConfig bundles the tunables of the reallocation policy.
type ReallocatorConfig struct {
	// RetryLimit bounds requeues per task; 0 disables retries entirely.
	RetryLimit int
	// MinAcceptableConfidence marks failed attempts above it as degraded but
	// usable, so they are not retried needlessly.
	MinAcceptableConfidence float64
	// SmoothingFactor is the EMA weight applied to the newest duration and
	// confidence samples. Must be in (0,1].
	SmoothingFactor float64
	// Policy overrides DefaultDecisionPolicy when set.
	Policy DecisionPolicy
}

// Reallocator owns per-analyzer performance history and decides whether a
// task is retried, reassigned, or abandoned. It is the single writer of
// PerformanceRecord state; all other components read through Snapshot.
type Reallocator struct {
	mu      sync.RWMutex
	records map[string]*record

	retryLimit    int
	minConfidence float64
	smoothing     float64
	policy        DecisionPolicy
	logger        *slog.Logger
}

// NewReallocator constructs a reallocator with the supplied tunables.
// Out-of-range values fall back to the documented defaults.
func NewReallocator(logger *slog.Logger, cfg ReallocatorConfig) *Reallocator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 3
	}
	if cfg.MinAcceptableConfidence < 0 || cfg.MinAcceptableConfidence > 1 {
		cfg.MinAcceptableConfidence = 0.2
	}
	if cfg.SmoothingFactor <= 0 || cfg.SmoothingFactor > 1 {
		cfg.SmoothingFactor = 0.3
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultDecisionPolicy
	}
	return &Reallocator{
		records:       make(map[string]*record),
		retryLimit:    cfg.RetryLimit,
		minConfidence: cfg.MinAcceptableConfidence,
		smoothing:     cfg.SmoothingFactor,
		policy:        policy,
		logger:        logger,
	}
}

// RecordOutcome folds a terminal attempt into the analyzer's performance
// record. The update is atomic with respect to concurrent Snapshot reads.
func (r *Reallocator) RecordOutcome(analyzerName string, succeeded bool, duration time.Duration, confidence float64) {
	if analyzerName == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[analyzerName]
	if !ok {
		rec = &record{}
		r.records[analyzerName] = rec
	}
	if succeeded {
		rec.successes++
	} else {
		rec.failures++
	}
	if !rec.seeded {
		rec.avgDuration = duration
		rec.avgConfidence = confidence
		rec.seeded = true
		return
	}
	alpha := r.smoothing
	rec.avgDuration = time.Duration(alpha*float64(duration) + (1-alpha)*float64(rec.avgDuration))
	rec.avgConfidence = alpha*confidence + (1-alpha)*rec.avgConfidence
}

// Decide applies the decision policy to a terminal attempt.
func (r *Reallocator) Decide(task *models.Task, outcome Outcome, alternativeAvailable bool) Decision {
	decision := r.policy(DecisionInput{
		Task:                    task,
		Outcome:                 outcome,
		AlternativeAvailable:    alternativeAvailable,
		RetryLimit:              r.retryLimit,
		MinAcceptableConfidence: r.minConfidence,
	})
	r.logger.Debug("reallocation decision",
		slog.String("task_id", task.ID),
		slog.String("analyzer", outcome.Analyzer),
		slog.Bool("succeeded", outcome.Succeeded),
		slog.Int("attempts", task.Attempts),
		slog.String("decision", string(decision)),
	)
	return decision
}

// RetryLimit exposes the configured retry budget.
func (r *Reallocator) RetryLimit() int {
	return r.retryLimit
}

// Snapshot returns a read-only copy of one analyzer's performance record.
func (r *Reallocator) Snapshot(analyzerName string) (models.PerformanceSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[analyzerName]
	if !ok {
		return models.PerformanceSnapshot{AnalyzerName: analyzerName}, false
	}
	return models.PerformanceSnapshot{
		AnalyzerName:  analyzerName,
		Successes:     rec.successes,
		Failures:      rec.failures,
		AvgDuration:   rec.avgDuration,
		AvgConfidence: rec.avgConfidence,
	}, true
}

// Snapshots returns copies of every performance record in the run.
func (r *Reallocator) Snapshots() []models.PerformanceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.PerformanceSnapshot, 0, len(r.records))
	for name, rec := range r.records {
		out = append(out, models.PerformanceSnapshot{
			AnalyzerName:  name,
			Successes:     rec.successes,
			Failures:      rec.failures,
			AvgDuration:   rec.avgDuration,
			AvgConfidence: rec.avgConfidence,
		})
	}
	return out
}
