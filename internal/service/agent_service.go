package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/agent"
	"github.com/sentinelstack/sentinel-agent/internal/metrics"
	"github.com/sentinelstack/sentinel-agent/internal/models"
	"github.com/sentinelstack/sentinel-agent/internal/utils"
	"github.com/sentinelstack/sentinel-agent/pkg/cache"
)

// MonitorSource describes the monitoring backend operations used to enrich
// incidents submitted without payload data.
type MonitorSource interface {
	FetchLogLines(ctx context.Context, incidentID string, start, end time.Time) ([]string, error)
	FetchAlarms(ctx context.Context, incidentID string, start, end time.Time) ([]models.Alarm, error)
}

// AgentService is the host-facing facade over the orchestration core.
type AgentService struct {
	logger    *slog.Logger
	planner   *agent.Planner
	monitor   MonitorSource
	reports   *cache.ReportCache
	reportTTL time.Duration
	window    time.Duration
	latencies *utils.LatencyTracker
}

// Option customises the service facade.
type Option func(*AgentService)

// WithMonitor attaches a monitoring backend for incident enrichment.
func WithMonitor(monitor MonitorSource, window time.Duration) Option {
	return func(s *AgentService) {
		s.monitor = monitor
		if window > 0 {
			s.window = window
		}
	}
}

// WithReportCache enables report memoization with the given TTL.
func WithReportCache(ttl time.Duration) Option {
	return func(s *AgentService) {
		s.reports = cache.NewReportCache()
		s.reportTTL = ttl
	}
}

// NewAgentService constructs the service facade.
func NewAgentService(logger *slog.Logger, planner *agent.Planner, opts ...Option) *AgentService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AgentService{
		logger:    logger,
		planner:   planner,
		window:    15 * time.Minute,
		latencies: utils.NewLatencyTracker(1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeIncident runs the full analysis cycle for one incident and returns
// its report. Only malformed input produces an error.
func (s *AgentService) AnalyzeIncident(ctx context.Context, incident *models.Incident) (*models.Report, error) {
	if incident == nil {
		return nil, utils.NewAppError("AnalyzeIncident", "incident is required", nil)
	}

	if s.reports != nil {
		if report, ok := s.reports.Get(incident.ID); ok {
			s.logger.Debug("returning memoized report", slog.String("incident_id", incident.ID))
			return report, nil
		}
	}

	s.enrich(ctx, incident)

	start := time.Now()
	report, err := s.planner.Run(ctx, incident)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		var invalid *agent.InvalidIncidentError
		if errors.As(err, &invalid) {
			return nil, err
		}
		s.logger.Error("incident analysis failed", slog.Any("error", err))
		return nil, utils.NewAppError("AnalyzeIncident", "analysis failed", err)
	}

	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	if s.reports != nil {
		s.reports.Set(incident.ID, report, s.reportTTL)
	}
	return report, nil
}

// LatencyP95 returns the current p95 analysis latency.
func (s *AgentService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

// enrich backfills logs and alarms from the monitoring backend when the
// incident arrived without payload data. Fetch failures are logged and
// ignored; the run proceeds with whatever data exists.
func (s *AgentService) enrich(ctx context.Context, incident *models.Incident) {
	if s.monitor == nil || incident.ID == "" {
		return
	}
	if len(incident.Logs) > 0 || len(incident.Alarms) > 0 {
		return
	}

	end := incident.OccurredAt
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.Add(-s.window)

	lines, err := s.monitor.FetchLogLines(ctx, incident.ID, start, end)
	if err != nil {
		s.logger.Warn("monitor log fetch failed", slog.Any("error", err))
	} else {
		incident.Logs = lines
	}

	alarms, err := s.monitor.FetchAlarms(ctx, incident.ID, start, end)
	if err != nil {
		s.logger.Warn("monitor alarm fetch failed", slog.Any("error", err))
	} else {
		incident.Alarms = alarms
	}
}
