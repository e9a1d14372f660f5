package models

import "time"

// Finding is a single observation produced by an analyzer.
type Finding struct {
	Category    string
	Description string
	// Evidence references the originating data, e.g. "log:12" or "alarm:ALM-002".
	Evidence   string
	Confidence float64
}

// AnalysisResult is the immutable outcome of one analyzer attempt on one task.
type AnalysisResult struct {
	TaskID       string
	AnalyzerName string
	Findings     []Finding
	Remediations []string
	Confidence   float64
	Duration     time.Duration
}

// PerformanceSnapshot is a read-only copy of an analyzer's performance record.
type PerformanceSnapshot struct {
	AnalyzerName  string
	Successes     int
	Failures      int
	AvgDuration   time.Duration
	AvgConfidence float64
}

// Attempts returns the total terminal attempts recorded.
func (p PerformanceSnapshot) Attempts() int {
	return p.Successes + p.Failures
}

// SuccessRate returns successes over total attempts, zero when unobserved.
func (p PerformanceSnapshot) SuccessRate() float64 {
	total := p.Attempts()
	if total == 0 {
		return 0
	}
	return float64(p.Successes) / float64(total)
}
