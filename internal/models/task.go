package models

// TaskType enumerates analysis task categories. The set is open: hosts may
// introduce additional types through custom task derivers and analyzers.
type TaskType string

const (
	TaskTypeLogAnalysis         TaskType = "log_analysis"
	TaskTypeAlarmAnalysis       TaskType = "alarm_analysis"
	TaskTypePerformanceAnalysis TaskType = "performance_analysis"
	TaskTypeCustomAnalysis      TaskType = "custom_analysis"
)

// TaskStatus tracks the lifecycle of a task within one run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskAssigned  TaskStatus = "assigned"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskAbandoned TaskStatus = "abandoned"
)

// TaskPriority orders tasks at plan time. Higher runs earlier.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// TaskPayload carries the slice of incident data relevant to one task.
type TaskPayload struct {
	Logs     []string
	Alarms   []Alarm
	Metadata map[string]string
}

// Task is one unit of analysis work derived from an incident. A task is owned
// by the planner; the selector, analyzers, and reallocator mutate it only
// through the planner's single in-flight attempt.
type Task struct {
	ID               string
	IncidentID       string
	Type             TaskType
	Priority         TaskPriority
	Payload          TaskPayload
	Status           TaskStatus
	Attempts         int
	AssignedAnalyzer string
	// FailedAnalyzers lists analyzers that already failed this task and must
	// not be re-selected for its next attempt.
	FailedAnalyzers []string
	AbandonReason   AbandonReason
}

// AbandonReason distinguishes coverage gaps from analyzer instability.
type AbandonReason string

const (
	AbandonNone               AbandonReason = ""
	AbandonNoCapableAnalyzer  AbandonReason = "no_capable_analyzer"
	AbandonRetriesExhausted   AbandonReason = "retries_exhausted"
	AbandonNoAlternativeFound AbandonReason = "no_alternative_analyzer"
)

// HasFailedWith reports whether the named analyzer already failed this task.
func (t *Task) HasFailedWith(name string) bool {
	for _, failed := range t.FailedAnalyzers {
		if failed == name {
			return true
		}
	}
	return false
}
