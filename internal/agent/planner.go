package agent

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelstack/sentinel-agent/internal/analyzer"
	"github.com/sentinelstack/sentinel-agent/internal/metrics"
	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// TaskDeriver lets hosts append custom analysis tasks at plan time.
type TaskDeriver func(incident *models.Incident) []*models.Task

// TaskOutcome pairs a task with its accepted result, or with the error that
// led to its abandonment.
type TaskOutcome struct {
	Task   *models.Task
	Result *models.AnalysisResult
	Err    error
}

// PlannerConfig bundles the scheduling tunables.
type PlannerConfig struct {
	// TaskTimeout bounds every analyzer invocation. Zero disables the bound.
	TaskTimeout time.Duration
	// MaxConcurrentTasks limits the dispatch fan-out. Zero means 5.
	MaxConcurrentTasks int
	// Deriver appends custom tasks after the built-in decomposition.
	Deriver TaskDeriver
}

// Planner decomposes incidents into tasks, dispatches them through the
// selector, consumes reallocation decisions, and hands completed outcomes to
// the summarizer.
type Planner struct {
	logger      *slog.Logger
	selector    *Selector
	reallocator *Reallocator
	summarizer  *Summarizer

	taskTimeout   time.Duration
	maxConcurrent int
	deriver       TaskDeriver
}

// NewPlanner wires the orchestration core together.
func NewPlanner(logger *slog.Logger, selector *Selector, reallocator *Reallocator, summarizer *Summarizer, cfg PlannerConfig) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 5
	}
	return &Planner{
		logger:        logger,
		selector:      selector,
		reallocator:   reallocator,
		summarizer:    summarizer,
		taskTimeout:   cfg.TaskTimeout,
		maxConcurrent: cfg.MaxConcurrentTasks,
		deriver:       cfg.Deriver,
	}
}

// Plan decomposes an incident into its analysis tasks: one log task when log
// lines are present, one alarm task when alarms are present, plus any derived
// custom tasks. Tasks are ordered by priority, insertion order preserved
// within a priority.
func (p *Planner) Plan(incident *models.Incident) []*models.Task {
	var tasks []*models.Task

	if len(incident.Logs) > 0 {
		tasks = append(tasks, &models.Task{
			ID:         uuid.NewString(),
			IncidentID: incident.ID,
			Type:       models.TaskTypeLogAnalysis,
			Priority:   models.PriorityHigh,
			Payload:    models.TaskPayload{Logs: incident.Logs, Metadata: incident.Metadata},
			Status:     models.TaskPending,
		})
	}
	if len(incident.Alarms) > 0 {
		tasks = append(tasks, &models.Task{
			ID:         uuid.NewString(),
			IncidentID: incident.ID,
			Type:       models.TaskTypeAlarmAnalysis,
			Priority:   models.PriorityHigh,
			Payload:    models.TaskPayload{Alarms: incident.Alarms, Metadata: incident.Metadata},
			Status:     models.TaskPending,
		})
	}
	if p.deriver != nil {
		for _, task := range p.deriver(incident) {
			if task == nil {
				continue
			}
			if task.ID == "" {
				task.ID = uuid.NewString()
			}
			task.IncidentID = incident.ID
			if task.Priority == 0 {
				task.Priority = models.PriorityMedium
			}
			task.Status = models.TaskPending
			tasks = append(tasks, task)
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})
	return tasks
}

// Run drives the full cycle: decompose, dispatch concurrently, reallocate,
// summarize. Only malformed input surfaces as an error; analyzer failures are
// folded into the report.
func (p *Planner) Run(ctx context.Context, incident *models.Incident) (*models.Report, error) {
	if incident == nil {
		return nil, &InvalidIncidentError{Reason: "incident is nil"}
	}
	if incident.ID == "" {
		return nil, &InvalidIncidentError{Reason: "incident id is required"}
	}

	tasks := p.Plan(incident)
	p.logger.Info("analysis plan created",
		slog.String("incident_id", incident.ID),
		slog.Int("tasks", len(tasks)),
	)

	outcomes := make([]TaskOutcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcomes[i] = p.executeTask(gctx, task)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.summarizer.Summarize(incident, outcomes), nil
}

// executeTask runs one task to a terminal state. Requeues happen inside this
// loop, so a task never has more than one in-flight attempt.
func (p *Planner) executeTask(ctx context.Context, task *models.Task) TaskOutcome {
	for {
		if err := ctx.Err(); err != nil {
			p.abandon(task, models.AbandonRetriesExhausted)
			return TaskOutcome{Task: task, Err: err}
		}

		name, err := p.selector.Select(task)
		if err != nil {
			reason := models.AbandonNoAlternativeFound
			if task.Attempts == 0 {
				reason = models.AbandonNoCapableAnalyzer
			}
			p.abandon(task, reason)
			return TaskOutcome{Task: task, Err: err}
		}
		a, ok := p.selector.Get(name)
		if !ok {
			// Unregistered between Select and Get; try again.
			continue
		}

		task.Status = models.TaskAssigned
		task.AssignedAnalyzer = name
		task.Status = models.TaskRunning
		task.Attempts++

		result, duration, attemptErr := p.runAttempt(ctx, a, task)
		outcome := Outcome{
			Analyzer:   name,
			Succeeded:  attemptErr == nil,
			Confidence: result.Confidence,
			Duration:   duration,
			Err:        attemptErr,
		}
		p.reallocator.RecordOutcome(name, outcome.Succeeded, duration, result.Confidence)
		metrics.ObserveTaskAttempt(string(task.Type), outcome.Succeeded)

		if attemptErr == nil {
			task.Status = models.TaskSucceeded
			return TaskOutcome{Task: task, Result: &result}
		}

		p.logger.Warn("analysis attempt failed",
			slog.String("task_id", task.ID),
			slog.String("analyzer", name),
			slog.Int("attempt", task.Attempts),
			slog.Any("error", attemptErr),
		)
		task.Status = models.TaskFailed
		if !task.HasFailedWith(name) {
			task.FailedAnalyzers = append(task.FailedAnalyzers, name)
		}

		switch p.reallocator.Decide(task, outcome, p.selector.CanServe(task)) {
		case DecisionAccept:
			// Degraded but usable partial result.
			task.Status = models.TaskSucceeded
			return TaskOutcome{Task: task, Result: &result}
		case DecisionRequeue:
			task.Status = models.TaskPending
			task.AssignedAnalyzer = ""
		default:
			reason := models.AbandonRetriesExhausted
			if task.Attempts < p.reallocator.RetryLimit() {
				reason = models.AbandonNoAlternativeFound
			}
			p.abandon(task, reason)
			return TaskOutcome{Task: task, Err: attemptErr}
		}
	}
}

// runAttempt invokes the analyzer under the per-task timeout. A deadline hit
// is normalised into a TimeoutError so reallocation treats it like any other
// failed attempt, and the attempt's context is always released first.
func (p *Planner) runAttempt(ctx context.Context, a analyzer.Analyzer, task *models.Task) (models.AnalysisResult, time.Duration, error) {
	attemptCtx := ctx
	cancel := func() {}
	if p.taskTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
	}
	start := time.Now()
	result, err := a.Analyze(attemptCtx, task)
	duration := time.Since(start)
	timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancel()

	result.TaskID = task.ID
	if result.AnalyzerName == "" {
		result.AnalyzerName = a.Name()
	}
	result.Duration = duration
	result.Confidence = clampUnit(result.Confidence)

	if err != nil && timedOut {
		err = &TimeoutError{TaskID: task.ID, Analyzer: a.Name()}
	}
	return result, duration, err
}

func (p *Planner) abandon(task *models.Task, reason models.AbandonReason) {
	task.Status = models.TaskAbandoned
	task.AbandonReason = reason
	metrics.ObserveTaskAbandoned(string(reason))
	p.logger.Warn("task abandoned",
		slog.String("task_id", task.ID),
		slog.String("task_type", string(task.Type)),
		slog.String("reason", string(reason)),
	)
}
