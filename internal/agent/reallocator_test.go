package agent

import (
	"math"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

func TestRecordOutcomeSeedsFirstSample(t *testing.T) {
	r := NewReallocator(discardLogger(), ReallocatorConfig{RetryLimit: 3, SmoothingFactor: 0.3})
	r.RecordOutcome("logs", true, 200*time.Millisecond, 0.8)

	snap, ok := r.Snapshot("logs")
	if !ok {
		t.Fatalf("expected record for logs")
	}
	if snap.Successes != 1 || snap.Failures != 0 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.AvgDuration != 200*time.Millisecond {
		t.Fatalf("first sample should seed the average, got %v", snap.AvgDuration)
	}
	if snap.AvgConfidence != 0.8 {
		t.Fatalf("first sample should seed confidence, got %v", snap.AvgConfidence)
	}
}

func TestRecordOutcomeSmoothsSubsequentSamples(t *testing.T) {
	r := NewReallocator(discardLogger(), ReallocatorConfig{RetryLimit: 3, SmoothingFactor: 0.5})
	r.RecordOutcome("logs", true, 100*time.Millisecond, 1.0)
	r.RecordOutcome("logs", false, 300*time.Millisecond, 0.0)

	snap, _ := r.Snapshot("logs")
	if snap.Successes != 1 || snap.Failures != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
	if snap.AvgDuration != 200*time.Millisecond {
		t.Fatalf("expected smoothed duration 200ms, got %v", snap.AvgDuration)
	}
	if math.Abs(snap.AvgConfidence-0.5) > 1e-9 {
		t.Fatalf("expected smoothed confidence 0.5, got %v", snap.AvgConfidence)
	}
	if snap.SuccessRate() != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", snap.SuccessRate())
	}
}

func TestSnapshotUnknownAnalyzer(t *testing.T) {
	r := NewReallocator(discardLogger(), ReallocatorConfig{RetryLimit: 3})
	if _, ok := r.Snapshot("ghost"); ok {
		t.Fatalf("expected no record for unknown analyzer")
	}
}

func TestDefaultPolicyAcceptsSuccess(t *testing.T) {
	decision := DefaultDecisionPolicy(DecisionInput{
		Task:       &models.Task{Attempts: 1},
		Outcome:    Outcome{Succeeded: true},
		RetryLimit: 3,
	})
	if decision != DecisionAccept {
		t.Fatalf("expected accept, got %s", decision)
	}
}

func TestDefaultPolicyAcceptsDegradedFailure(t *testing.T) {
	decision := DefaultDecisionPolicy(DecisionInput{
		Task:                    &models.Task{Attempts: 3},
		Outcome:                 Outcome{Succeeded: false, Confidence: 0.5},
		RetryLimit:              3,
		MinAcceptableConfidence: 0.2,
	})
	if decision != DecisionAccept {
		t.Fatalf("expected degraded result to be accepted, got %s", decision)
	}
}

func TestDefaultPolicyRequeuesWithinBudget(t *testing.T) {
	decision := DefaultDecisionPolicy(DecisionInput{
		Task:                    &models.Task{Attempts: 1},
		Outcome:                 Outcome{Succeeded: false},
		AlternativeAvailable:    true,
		RetryLimit:              3,
		MinAcceptableConfidence: 0.2,
	})
	if decision != DecisionRequeue {
		t.Fatalf("expected requeue, got %s", decision)
	}
}

func TestDefaultPolicyAbandonsAtRetryLimit(t *testing.T) {
	decision := DefaultDecisionPolicy(DecisionInput{
		Task:                    &models.Task{Attempts: 3},
		Outcome:                 Outcome{Succeeded: false},
		AlternativeAvailable:    true,
		RetryLimit:              3,
		MinAcceptableConfidence: 0.2,
	})
	if decision != DecisionAbandon {
		t.Fatalf("expected abandon, got %s", decision)
	}
}

func TestDefaultPolicyAbandonsWithoutAlternative(t *testing.T) {
	decision := DefaultDecisionPolicy(DecisionInput{
		Task:                    &models.Task{Attempts: 1},
		Outcome:                 Outcome{Succeeded: false},
		AlternativeAvailable:    false,
		RetryLimit:              3,
		MinAcceptableConfidence: 0.2,
	})
	if decision != DecisionAbandon {
		t.Fatalf("expected abandon, got %s", decision)
	}
}

func TestZeroRetryLimitDisablesRetries(t *testing.T) {
	r := NewReallocator(discardLogger(), ReallocatorConfig{RetryLimit: 0, MinAcceptableConfidence: 0.2, SmoothingFactor: 0.3})
	if r.RetryLimit() != 0 {
		t.Fatalf("expected retry limit 0, got %d", r.RetryLimit())
	}

	task := &models.Task{ID: "t", Attempts: 1}
	decision := r.Decide(task, Outcome{Succeeded: false}, true)
	if decision != DecisionAbandon {
		t.Fatalf("expected immediate abandon with zero retry budget, got %s", decision)
	}
}

func TestCustomPolicyOverridesDefault(t *testing.T) {
	always := func(DecisionInput) Decision { return DecisionAbandon }
	r := NewReallocator(discardLogger(), ReallocatorConfig{RetryLimit: 3, Policy: always})

	task := &models.Task{ID: "t", Attempts: 1}
	if decision := r.Decide(task, Outcome{Succeeded: true}, true); decision != DecisionAbandon {
		t.Fatalf("expected injected policy verdict, got %s", decision)
	}
}
