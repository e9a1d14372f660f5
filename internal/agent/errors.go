package agent

import "fmt"

// InvalidIncidentError reports malformed input. It is the only error kind that
// surfaces to the caller of Run; no tasks are created once it is detected.
type InvalidIncidentError struct {
	Reason string
}

func (e *InvalidIncidentError) Error() string {
	return fmt.Sprintf("invalid incident: %s", e.Reason)
}

// NoCapableAnalyzerError reports that no registered analyzer matches a task.
// The planner abandons the task without consuming attempts.
type NoCapableAnalyzerError struct {
	TaskID   string
	TaskType string
}

func (e *NoCapableAnalyzerError) Error() string {
	return fmt.Sprintf("no capable analyzer for task %s (%s)", e.TaskID, e.TaskType)
}

// TimeoutError reports that an attempt exceeded its per-task bound. For
// reallocation purposes it is treated identically to an analysis failure.
type TimeoutError struct {
	TaskID   string
	Analyzer string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analyzer %s timed out on task %s", e.Analyzer, e.TaskID)
}
