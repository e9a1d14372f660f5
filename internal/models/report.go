package models

import "time"

// Report is the final merged root-cause analysis for one incident.
type Report struct {
	ReportID   string
	IncidentID string
	RootCause  string
	// Inconclusive is set when no finding met the significance threshold; the
	// root-cause statement then lists the top candidate findings instead.
	Inconclusive bool
	Findings     []ReportFinding
	Remediations []string
	Confidence   float64
	FailedTasks  []TaskFailure
	CreatedAt    time.Time
}

// ReportFinding cross-references a merged finding to its originating task.
type ReportFinding struct {
	TaskID       string
	TaskType     TaskType
	AnalyzerName string
	Category     string
	Description  string
	Evidence     string
	Confidence   float64
}

// TaskFailure records a task that ended abandoned, with the reason operators
// need to distinguish coverage gaps from analyzer instability.
type TaskFailure struct {
	TaskID   string
	TaskType TaskType
	Reason   AbandonReason
	Attempts int
	LastErr  string
}
