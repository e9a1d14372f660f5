package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// LogAnalyzerName is the registry name of the built-in log analyzer.
const LogAnalyzerName = "log-analyzer"

var defaultErrorPatterns = []string{
	`ERROR`,
	`FATAL`,
	`Exception`,
	`Failed`,
	`Timeout`,
	`Connection refused`,
	`Out of memory`,
	`Stack overflow`,
}

var defaultWarningPatterns = []string{
	`WARNING`,
	`WARN`,
	`Deprecated`,
	`Slow query`,
	`High CPU`,
	`Memory usage`,
}

var defaultPerformancePatterns = []string{
	`slow.*query`,
	`high.*cpu`,
	`memory.*usage`,
	`response.*time.*\d+ms`,
	`timeout`,
}

// resourceKeywords refine a matched line into a more specific category.
var resourceKeywords = []struct {
	category string
	keywords []string
}{
	{"database", []string{"database", "query", "sql"}},
	{"network", []string{"connection", "network", "unreachable", "refused"}},
	{"memory", []string{"memory", "oom", "heap"}},
	{"cpu", []string{"cpu", "load average"}},
	{"disk", []string{"disk", "no space", "i/o"}},
}

// LogAnalyzer scans raw log lines for error, warning, and performance
// signatures and turns matches into findings with line-level evidence.
type LogAnalyzer struct {
	errorPatterns       []*regexp.Regexp
	warningPatterns     []*regexp.Regexp
	performancePatterns []*regexp.Regexp
}

// NewLogAnalyzer builds the analyzer from the built-in pattern sets, with
// optional overrides from a pattern pack. Invalid expressions in the pack are
// rejected.
func NewLogAnalyzer(pack *PatternPack) (*LogAnalyzer, error) {
	errPats, warnPats, perfPats := defaultErrorPatterns, defaultWarningPatterns, defaultPerformancePatterns
	if pack != nil {
		if len(pack.Log.ErrorPatterns) > 0 {
			errPats = pack.Log.ErrorPatterns
		}
		if len(pack.Log.WarningPatterns) > 0 {
			warnPats = pack.Log.WarningPatterns
		}
		if len(pack.Log.PerformancePatterns) > 0 {
			perfPats = pack.Log.PerformancePatterns
		}
	}

	a := &LogAnalyzer{}
	var err error
	if a.errorPatterns, err = compileAll(errPats); err != nil {
		return nil, err
	}
	if a.warningPatterns, err = compileAll(warnPats); err != nil {
		return nil, err
	}
	if a.performancePatterns, err = compileAll(perfPats); err != nil {
		return nil, err
	}
	return a, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile log pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Name implements Analyzer.
func (a *LogAnalyzer) Name() string { return LogAnalyzerName }

// SupportedTaskTypes implements Analyzer.
func (a *LogAnalyzer) SupportedTaskTypes() []models.TaskType {
	return []models.TaskType{models.TaskTypeLogAnalysis}
}

// CanHandle implements Analyzer: the payload must carry log lines.
func (a *LogAnalyzer) CanHandle(task *models.Task) bool {
	return task != nil && task.Type == models.TaskTypeLogAnalysis && len(task.Payload.Logs) > 0
}

// Analyze implements Analyzer.
func (a *LogAnalyzer) Analyze(ctx context.Context, task *models.Task) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{TaskID: task.ID, AnalyzerName: a.Name()}, NewAnalysisError(a.Name(), err)
	}

	var findings []models.Finding
	errCount, warnCount, perfCount := 0, 0, 0
	matchedPatterns := make(map[string]struct{})

	for i, line := range task.Payload.Logs {
		evidence := fmt.Sprintf("log:%d", i+1)
		if pattern, ok := firstMatch(a.errorPatterns, line); ok {
			errCount++
			markMatches(a.errorPatterns, line, matchedPatterns)
			findings = append(findings, models.Finding{
				Category:    refineCategory("error", line),
				Description: fmt.Sprintf("matched %q: %s", pattern, strings.TrimSpace(line)),
				Evidence:    evidence,
				Confidence:  errorConfidence(line),
			})
			continue
		}
		if pattern, ok := firstMatch(a.warningPatterns, line); ok {
			warnCount++
			matchedPatterns[pattern] = struct{}{}
			findings = append(findings, models.Finding{
				Category:    refineCategory("warning", line),
				Description: fmt.Sprintf("matched %q: %s", pattern, strings.TrimSpace(line)),
				Evidence:    evidence,
				Confidence:  0.5,
			})
			continue
		}
		if pattern, ok := firstMatch(a.performancePatterns, line); ok {
			perfCount++
			matchedPatterns[pattern] = struct{}{}
			findings = append(findings, models.Finding{
				Category:    "performance",
				Description: fmt.Sprintf("matched %q: %s", pattern, strings.TrimSpace(line)),
				Evidence:    evidence,
				Confidence:  0.6,
			})
		}
	}

	result := models.AnalysisResult{
		TaskID:       task.ID,
		AnalyzerName: a.Name(),
		Findings:     findings,
		Remediations: logRemediations(errCount, warnCount, perfCount, matchedPatterns),
		Confidence:   logConfidence(errCount, warnCount+perfCount),
	}
	return result, nil
}

// markMatches records every pattern matching the line, so remediations keyed
// on a specific signature fire even when a generic pattern matched first.
func markMatches(patterns []*regexp.Regexp, line string, matched map[string]struct{}) {
	for _, re := range patterns {
		if re.MatchString(line) {
			matched[re.String()] = struct{}{}
		}
	}
}

func firstMatch(patterns []*regexp.Regexp, line string) (string, bool) {
	for _, re := range patterns {
		if re.MatchString(line) {
			return re.String(), true
		}
	}
	return "", false
}

// refineCategory narrows a generic match into a resource or dependency
// category when the line names one.
func refineCategory(fallback, line string) string {
	lower := strings.ToLower(line)
	for _, rk := range resourceKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(lower, kw) {
				return rk.category
			}
		}
	}
	return fallback
}

func errorConfidence(line string) float64 {
	if refineCategory("error", line) != "error" {
		// A categorised error names its failing subsystem, which is a
		// stronger root-cause signal than a bare match.
		return 0.9
	}
	return 0.8
}

// logConfidence follows the severity-weighted heuristic: more high-severity
// matches raise trust in the analysis, capped at 0.9.
func logConfidence(high, medium int) float64 {
	if high == 0 && medium == 0 {
		return 0
	}
	confidence := 0.3 + float64(high)*0.2 + float64(medium)*0.1
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}

func logRemediations(errCount, warnCount, perfCount int, matched map[string]struct{}) []string {
	var suggestions []string
	if errCount > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Found %d error lines; triage the logged exceptions first", errCount))
	}
	if warnCount > 5 {
		suggestions = append(suggestions, fmt.Sprintf("Found %d warnings; review system configuration and resource usage", warnCount))
	}
	if perfCount > 0 {
		suggestions = append(suggestions, fmt.Sprintf("Found %d performance signatures; profile slow queries and resource-heavy paths", perfCount))
	}
	if _, ok := matched["(?i)Connection refused"]; ok {
		suggestions = append(suggestions, "Connection refused detected; verify service health and network reachability")
	}
	if _, ok := matched["(?i)Out of memory"]; ok {
		suggestions = append(suggestions, "Out-of-memory detected; check for leaks or raise memory limits")
	}
	if _, ok := matched["(?i)Timeout"]; ok {
		suggestions = append(suggestions, "Timeouts detected; check downstream latency and response budgets")
	}
	return suggestions
}
