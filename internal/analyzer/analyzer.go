package analyzer

import (
	"context"
	"fmt"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// Analyzer is the capability contract every pluggable analyzer implements.
// Implementations are stateless per call and safe for concurrent use.
type Analyzer interface {
	// Name returns the unique analyzer name used for registration and
	// performance tracking.
	Name() string
	// SupportedTaskTypes declares which task types the analyzer accepts.
	SupportedTaskTypes() []models.TaskType
	// CanHandle checks whether the analyzer can process this specific payload.
	CanHandle(task *models.Task) bool
	// Analyze executes the task. On failure it may still return a partial
	// result alongside the error; the orchestrator decides whether a degraded
	// result is usable.
	Analyze(ctx context.Context, task *models.Task) (models.AnalysisResult, error)
}

// AnalysisError wraps an analyzer-internal failure. It is treated as a failed
// attempt and routed through reallocation, never surfaced to the run's caller.
type AnalysisError struct {
	Analyzer string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzer %s: %v", e.Analyzer, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError constructs an AnalysisError.
func NewAnalysisError(analyzer string, err error) error {
	return &AnalysisError{Analyzer: analyzer, Err: err}
}
