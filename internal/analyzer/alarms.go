package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// AlarmAnalyzerName is the registry name of the built-in alarm analyzer.
const AlarmAnalyzerName = "alarm-analyzer"

// burstInterval is the mean inter-arrival time under which alarms count as a
// burst, a common signature of cascading failure.
const burstInterval = 5 * time.Minute

var defaultAlarmCategories = map[string][]string{
	"cpu":      {"cpu usage", "cpu load", "high cpu"},
	"memory":   {"memory usage", "out of memory", "memory pressure"},
	"disk":     {"disk space", "disk io", "disk full"},
	"network":  {"network", "connection", "latency"},
	"service":  {"service unavailable", "service down", "unhealthy"},
	"database": {"database", "query timeout", "replication"},
}

// AlarmAnalyzer correlates monitoring alarms: it classifies them by
// subsystem, spots repeated messages, and detects burst patterns.
type AlarmAnalyzer struct {
	categories map[string][]string
}

// NewAlarmAnalyzer builds the analyzer with the built-in category keywords,
// optionally overridden by a pattern pack.
func NewAlarmAnalyzer(pack *PatternPack) *AlarmAnalyzer {
	categories := defaultAlarmCategories
	if pack != nil && len(pack.Alarm.Categories) > 0 {
		categories = pack.Alarm.Categories
	}
	return &AlarmAnalyzer{categories: categories}
}

// Name implements Analyzer.
func (a *AlarmAnalyzer) Name() string { return AlarmAnalyzerName }

// SupportedTaskTypes implements Analyzer.
func (a *AlarmAnalyzer) SupportedTaskTypes() []models.TaskType {
	return []models.TaskType{models.TaskTypeAlarmAnalysis}
}

// CanHandle implements Analyzer: the payload must carry alarms.
func (a *AlarmAnalyzer) CanHandle(task *models.Task) bool {
	return task != nil && task.Type == models.TaskTypeAlarmAnalysis && len(task.Payload.Alarms) > 0
}

// Analyze implements Analyzer.
func (a *AlarmAnalyzer) Analyze(ctx context.Context, task *models.Task) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{TaskID: task.ID, AnalyzerName: a.Name()}, NewAnalysisError(a.Name(), err)
	}

	alarms := task.Payload.Alarms
	var findings []models.Finding

	categorised := a.categorise(alarms)
	findings = append(findings, categorised...)
	findings = append(findings, repeatedAlarms(alarms)...)
	if burst, ok := burstPattern(alarms); ok {
		findings = append(findings, burst)
	}

	result := models.AnalysisResult{
		TaskID:       task.ID,
		AnalyzerName: a.Name(),
		Findings:     findings,
		Remediations: a.remediations(findings),
		Confidence:   a.confidence(categorised, alarms),
	}
	return result, nil
}

// categorise groups alarms by subsystem keyword and emits one finding per
// non-empty category, weighted by the worst severity inside it.
func (a *AlarmAnalyzer) categorise(alarms []models.Alarm) []models.Finding {
	buckets := make(map[string][]models.Alarm)
	for _, alarm := range alarms {
		message := strings.ToLower(alarm.Message)
		for category, keywords := range a.categories {
			if containsAny(message, keywords) {
				buckets[category] = append(buckets[category], alarm)
				break
			}
		}
	}

	categories := make([]string, 0, len(buckets))
	for category := range buckets {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	findings := make([]models.Finding, 0, len(buckets))
	for _, category := range categories {
		group := buckets[category]
		worst := models.AlarmSeverityInfo
		for _, alarm := range group {
			if alarm.Severity.Weight() > worst.Weight() {
				worst = alarm.Severity
			}
		}
		confidence := 0.6
		if worst == models.AlarmSeverityCritical {
			confidence = 0.8
		}
		findings = append(findings, models.Finding{
			Category:    category,
			Description: fmt.Sprintf("%d %s alarms, worst severity %s", len(group), category, worst),
			Evidence:    fmt.Sprintf("alarm:%s", group[0].ID),
			Confidence:  confidence,
		})
	}
	return findings
}

func repeatedAlarms(alarms []models.Alarm) []models.Finding {
	counts := make(map[string]int)
	first := make(map[string]models.Alarm)
	for _, alarm := range alarms {
		counts[alarm.Message]++
		if _, ok := first[alarm.Message]; !ok {
			first[alarm.Message] = alarm
		}
	}

	messages := make([]string, 0, len(counts))
	for message, count := range counts {
		if count > 1 {
			messages = append(messages, message)
		}
	}
	sort.Strings(messages)

	findings := make([]models.Finding, 0, len(messages))
	for _, message := range messages {
		findings = append(findings, models.Finding{
			Category:    "alarm_storm",
			Description: fmt.Sprintf("alarm repeated %d times: %s", counts[message], message),
			Evidence:    fmt.Sprintf("alarm:%s", first[message].ID),
			Confidence:  0.6,
		})
	}
	return findings
}

// burstPattern reports when alarms cluster tightly in time, which points at a
// cascading failure rather than independent faults.
func burstPattern(alarms []models.Alarm) (models.Finding, bool) {
	times := make([]time.Time, 0, len(alarms))
	for _, alarm := range alarms {
		if !alarm.Timestamp.IsZero() {
			times = append(times, alarm.Timestamp)
		}
	}
	if len(times) < 2 {
		return models.Finding{}, false
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var total time.Duration
	for i := 1; i < len(times); i++ {
		total += times[i].Sub(times[i-1])
	}
	mean := total / time.Duration(len(times)-1)
	if mean >= burstInterval {
		return models.Finding{}, false
	}
	return models.Finding{
		Category:    "cascade",
		Description: fmt.Sprintf("%d alarms within a mean interval of %s suggest a cascading failure", len(times), mean.Round(time.Second)),
		Evidence:    fmt.Sprintf("alarm:%s", alarms[0].ID),
		Confidence:  0.8,
	}, true
}

func (a *AlarmAnalyzer) remediations(findings []models.Finding) []string {
	var suggestions []string
	for _, f := range findings {
		switch f.Category {
		case "cpu":
			suggestions = append(suggestions, "Check CPU utilisation and runaway processes on the affected hosts")
		case "memory":
			suggestions = append(suggestions, "Check memory usage and look for leaks before raising limits")
		case "disk":
			suggestions = append(suggestions, "Free disk space and review IO-heavy workloads")
		case "network":
			suggestions = append(suggestions, "Verify network connectivity and bandwidth between dependent services")
		case "service":
			suggestions = append(suggestions, "Check service health endpoints and dependency status")
		case "database":
			suggestions = append(suggestions, "Check database connectivity and slow query logs")
		case "alarm_storm":
			suggestions = append(suggestions, "Investigate the repeated alarm's root cause to stem the alarm storm")
		case "cascade":
			suggestions = append(suggestions, "Check for cascading failure or system overload behind the alarm burst")
		}
	}
	return suggestions
}

// confidence grows with the share of alarms the analyzer could classify.
func (a *AlarmAnalyzer) confidence(categorised []models.Finding, alarms []models.Alarm) float64 {
	if len(alarms) == 0 {
		return 0
	}
	classified := 0
	for _, alarm := range alarms {
		if containsAnyCategory(a.categories, strings.ToLower(alarm.Message)) {
			classified++
		}
	}
	confidence := 0.5 + 0.4*float64(classified)/float64(len(alarms))
	if len(categorised) > 0 {
		confidence += 0.1
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func containsAny(message string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(message, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func containsAnyCategory(categories map[string][]string, message string) bool {
	for _, keywords := range categories {
		if containsAny(message, keywords) {
			return true
		}
	}
	return false
}
