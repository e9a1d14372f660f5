package agent

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

func succeededOutcome(taskID string, taskType models.TaskType, result models.AnalysisResult) TaskOutcome {
	result.TaskID = taskID
	return TaskOutcome{
		Task:   &models.Task{ID: taskID, Type: taskType, Status: models.TaskSucceeded, Attempts: 1},
		Result: &result,
	}
}

func newTestSummarizer(perf PerformanceSource) *Summarizer {
	return NewSummarizer(discardLogger(), SummarizerConfig{SignificanceThreshold: 0.5, MaxRemediations: 10}, perf, nil)
}

func TestSummarizeNoOutcomes(t *testing.T) {
	s := newTestSummarizer(nil)
	report := s.Summarize(&models.Incident{ID: "inc-1"}, nil)

	if report.IncidentID != "inc-1" {
		t.Fatalf("unexpected incident id %s", report.IncidentID)
	}
	if report.ReportID == "" {
		t.Fatalf("expected a report id")
	}
	if !report.Inconclusive {
		t.Fatalf("expected inconclusive report")
	}
	if report.RootCause != "inconclusive: no analysis completed" {
		t.Fatalf("unexpected root cause %q", report.RootCause)
	}
	if report.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", report.Confidence)
	}
}

func TestSummarizeRootCauseFromStrongestFinding(t *testing.T) {
	s := newTestSummarizer(nil)
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{
			AnalyzerName: "log-analyzer",
			Confidence:   0.9,
			Findings: []models.Finding{
				{Category: "database", Description: "connection pool exhausted", Evidence: "log:3", Confidence: 0.9},
				{Category: "network", Description: "intermittent timeouts", Evidence: "log:7", Confidence: 0.4},
			},
		}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if report.Inconclusive {
		t.Fatalf("expected conclusive report")
	}
	if report.RootCause != "database: connection pool exhausted" {
		t.Fatalf("unexpected root cause %q", report.RootCause)
	}
}

func TestSummarizeInconclusiveListsCandidates(t *testing.T) {
	s := newTestSummarizer(nil)
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{
			AnalyzerName: "log-analyzer",
			Confidence:   0.4,
			Findings: []models.Finding{
				{Category: "network", Description: "sporadic timeouts", Evidence: "log:2", Confidence: 0.4},
				{Category: "cpu", Description: "load spike", Evidence: "log:5", Confidence: 0.3},
			},
		}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if !report.Inconclusive {
		t.Fatalf("expected inconclusive report")
	}
	if !strings.HasPrefix(report.RootCause, "inconclusive: no finding above significance threshold; candidates:") {
		t.Fatalf("unexpected root cause %q", report.RootCause)
	}
	if !strings.Contains(report.RootCause, "network (0.40)") {
		t.Fatalf("expected top candidate listed, got %q", report.RootCause)
	}
}

func TestSummarizeMergeIsOrderIndependent(t *testing.T) {
	s := newTestSummarizer(nil)
	a := succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{
		AnalyzerName: "log-analyzer",
		Confidence:   0.7,
		Findings: []models.Finding{
			{Category: "database", Description: "slow queries", Evidence: "log:4", Confidence: 0.7},
		},
		Remediations: []string{"Review slow query log"},
	})
	b := succeededOutcome("t2", models.TaskTypeAlarmAnalysis, models.AnalysisResult{
		AnalyzerName: "alarm-analyzer",
		Confidence:   0.8,
		Findings: []models.Finding{
			{Category: "database", Description: "pool exhausted", Evidence: "alarm:ALM-1", Confidence: 0.8},
			{Category: "network", Description: "packet loss", Evidence: "alarm:ALM-2", Confidence: 0.6},
		},
		Remediations: []string{"Increase pool size"},
	})

	forward := s.Summarize(&models.Incident{ID: "inc-1"}, []TaskOutcome{a, b})
	reversed := s.Summarize(&models.Incident{ID: "inc-1"}, []TaskOutcome{b, a})

	if !reflect.DeepEqual(forward.Findings, reversed.Findings) {
		t.Fatalf("finding order depends on completion order:\n%v\n%v", forward.Findings, reversed.Findings)
	}
	if !reflect.DeepEqual(forward.Remediations, reversed.Remediations) {
		t.Fatalf("remediation order depends on completion order")
	}
	if forward.RootCause != reversed.RootCause {
		t.Fatalf("root cause depends on completion order")
	}

	want := []string{"alarm:ALM-1", "log:4", "alarm:ALM-2"}
	for i, f := range forward.Findings {
		if f.Evidence != want[i] {
			t.Fatalf("unexpected finding order at %d: got %s want %s", i, f.Evidence, want[i])
		}
	}
}

func TestSummarizeConfidenceWeightedBySuccessRate(t *testing.T) {
	perf := perfStub{
		"reliable": {AnalyzerName: "reliable", Successes: 4},
		"shaky":    {AnalyzerName: "shaky", Successes: 1, Failures: 1},
	}
	s := newTestSummarizer(perf)
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{AnalyzerName: "reliable", Confidence: 0.8}),
		succeededOutcome("t2", models.TaskTypeAlarmAnalysis, models.AnalysisResult{AnalyzerName: "shaky", Confidence: 0.2}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	// (0.8*1.0 + 0.2*0.5) / 1.5
	want := 0.6
	if math.Abs(report.Confidence-want) > 1e-9 {
		t.Fatalf("expected weighted confidence %v, got %v", want, report.Confidence)
	}
}

func TestSummarizeConfidencePlainAverageWithoutHistory(t *testing.T) {
	s := newTestSummarizer(perfStub{})
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{AnalyzerName: "a", Confidence: 0.9}),
		succeededOutcome("t2", models.TaskTypeAlarmAnalysis, models.AnalysisResult{AnalyzerName: "b", Confidence: 0.3}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if math.Abs(report.Confidence-0.6) > 1e-9 {
		t.Fatalf("expected plain average 0.6, got %v", report.Confidence)
	}
}

func TestSummarizeDeduplicatesRemediations(t *testing.T) {
	s := newTestSummarizer(nil)
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{
			AnalyzerName: "log-analyzer",
			Confidence:   0.6,
			Remediations: []string{"Check database connectivity", "Restart the affected service"},
		}),
		succeededOutcome("t2", models.TaskTypeAlarmAnalysis, models.AnalysisResult{
			AnalyzerName: "alarm-analyzer",
			Confidence:   0.9,
			Remediations: []string{"check   DATABASE connectivity", "Scale out the pool"},
		}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if len(report.Remediations) != 3 {
		t.Fatalf("expected 3 deduplicated remediations, got %v", report.Remediations)
	}
	// The duplicate keeps its first wording but inherits the stronger source.
	if report.Remediations[0] != "Check database connectivity" {
		t.Fatalf("expected duplicate promoted to the front, got %v", report.Remediations)
	}
}

func TestSummarizeCapsRemediations(t *testing.T) {
	s := NewSummarizer(discardLogger(), SummarizerConfig{SignificanceThreshold: 0.5, MaxRemediations: 2}, nil, nil)
	outcomes := []TaskOutcome{
		succeededOutcome("t1", models.TaskTypeLogAnalysis, models.AnalysisResult{
			AnalyzerName: "log-analyzer",
			Confidence:   0.6,
			Remediations: []string{"one", "two", "three", "four"},
		}),
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if len(report.Remediations) != 2 {
		t.Fatalf("expected cap of 2, got %v", report.Remediations)
	}
}

func TestSummarizeRecordsFailedTasks(t *testing.T) {
	s := newTestSummarizer(nil)
	outcomes := []TaskOutcome{
		{
			Task: &models.Task{
				ID:            "t2",
				Type:          models.TaskTypeAlarmAnalysis,
				Status:        models.TaskAbandoned,
				Attempts:      3,
				AbandonReason: models.AbandonRetriesExhausted,
			},
			Err: &TimeoutError{TaskID: "t2", Analyzer: "alarm-analyzer"},
		},
		{
			Task: &models.Task{
				ID:            "t1",
				Type:          models.TaskTypeLogAnalysis,
				Status:        models.TaskAbandoned,
				AbandonReason: models.AbandonNoCapableAnalyzer,
			},
			Err: &NoCapableAnalyzerError{TaskID: "t1", TaskType: string(models.TaskTypeLogAnalysis)},
		},
	}

	report := s.Summarize(&models.Incident{ID: "inc-1"}, outcomes)
	if len(report.FailedTasks) != 2 {
		t.Fatalf("expected 2 failed tasks, got %d", len(report.FailedTasks))
	}
	if report.FailedTasks[0].TaskID != "t1" || report.FailedTasks[1].TaskID != "t2" {
		t.Fatalf("expected failures sorted by task id, got %+v", report.FailedTasks)
	}
	if report.FailedTasks[0].Reason != models.AbandonNoCapableAnalyzer {
		t.Fatalf("unexpected reason %s", report.FailedTasks[0].Reason)
	}
	if report.FailedTasks[1].Attempts != 3 {
		t.Fatalf("expected attempts recorded, got %d", report.FailedTasks[1].Attempts)
	}
	if !strings.Contains(report.FailedTasks[1].LastErr, "timed out") {
		t.Fatalf("expected timeout error captured, got %q", report.FailedTasks[1].LastErr)
	}
	if report.Confidence != 0 {
		t.Fatalf("all-failed run should report zero confidence, got %v", report.Confidence)
	}
}
