package agent

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// AnalyzerRank resolves analyzer registration order for deterministic
// tie-breaking in the merge step.
type AnalyzerRank interface {
	RegistrationOrder(name string) int
}

// SummarizerConfig bundles the merge tunables.
type SummarizerConfig struct {
	// SignificanceThreshold is the minimum confidence a finding needs to
	// anchor the root-cause statement. Must be in [0,1].
	SignificanceThreshold float64
	// MaxRemediations caps the deduplicated remediation list. Zero means 10.
	MaxRemediations int
}

// Summarizer merges heterogeneous task results into one coherent report.
type Summarizer struct {
	logger       *slog.Logger
	significance float64
	maxRemed     int
	perf         PerformanceSource
	rank         AnalyzerRank
}

// NewSummarizer constructs a summarizer. perf and rank may be nil; confidence
// weighting then falls back to an unweighted average and ties break on
// analyzer name.
func NewSummarizer(logger *slog.Logger, cfg SummarizerConfig, perf PerformanceSource, rank AnalyzerRank) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignificanceThreshold < 0 || cfg.SignificanceThreshold > 1 {
		cfg.SignificanceThreshold = 0.5
	}
	if cfg.MaxRemediations <= 0 {
		cfg.MaxRemediations = 10
	}
	return &Summarizer{
		logger:       logger,
		significance: cfg.SignificanceThreshold,
		maxRemed:     cfg.MaxRemediations,
		perf:         perf,
		rank:         rank,
	}
}

// Summarize merges all completed task outcomes into the final report. The
// merge re-sorts everything; it never trusts the completion order of
// concurrent tasks.
func (s *Summarizer) Summarize(incident *models.Incident, outcomes []TaskOutcome) *models.Report {
	report := &models.Report{
		ReportID:   uuid.NewString(),
		IncidentID: incident.ID,
		CreatedAt:  time.Now().UTC(),
	}

	var accepted []TaskOutcome
	for _, outcome := range outcomes {
		if outcome.Task == nil {
			continue
		}
		if outcome.Task.Status == models.TaskSucceeded && outcome.Result != nil {
			accepted = append(accepted, outcome)
			continue
		}
		failure := models.TaskFailure{
			TaskID:   outcome.Task.ID,
			TaskType: outcome.Task.Type,
			Reason:   outcome.Task.AbandonReason,
			Attempts: outcome.Task.Attempts,
		}
		if outcome.Err != nil {
			failure.LastErr = outcome.Err.Error()
		}
		report.FailedTasks = append(report.FailedTasks, failure)
	}
	sort.Slice(report.FailedTasks, func(i, j int) bool {
		return report.FailedTasks[i].TaskID < report.FailedTasks[j].TaskID
	})

	report.Findings = s.mergeFindings(accepted)
	report.RootCause, report.Inconclusive = s.deriveRootCause(report.Findings)
	report.Confidence = s.aggregateConfidence(accepted)
	report.Remediations = s.mergeRemediations(accepted)
	return report
}

func (s *Summarizer) mergeFindings(accepted []TaskOutcome) []models.ReportFinding {
	var findings []models.ReportFinding
	for _, outcome := range accepted {
		for _, f := range outcome.Result.Findings {
			findings = append(findings, models.ReportFinding{
				TaskID:       outcome.Task.ID,
				TaskType:     outcome.Task.Type,
				AnalyzerName: outcome.Result.AnalyzerName,
				Category:     f.Category,
				Description:  f.Description,
				Evidence:     f.Evidence,
				Confidence:   clampUnit(f.Confidence),
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Category != findings[j].Category {
			return findings[i].Category < findings[j].Category
		}
		if findings[i].Confidence != findings[j].Confidence {
			return findings[i].Confidence > findings[j].Confidence
		}
		if oi, oj := s.order(findings[i].AnalyzerName), s.order(findings[j].AnalyzerName); oi != oj {
			return oi < oj
		}
		return findings[i].Evidence < findings[j].Evidence
	})
	return findings
}

func (s *Summarizer) order(analyzerName string) int {
	if s.rank == nil {
		return 0
	}
	return s.rank.RegistrationOrder(analyzerName)
}

// deriveRootCause synthesises the statement from the strongest finding above
// the significance threshold, or declares the analysis inconclusive and lists
// the top candidates.
func (s *Summarizer) deriveRootCause(findings []models.ReportFinding) (string, bool) {
	if len(findings) == 0 {
		return "inconclusive: no analysis completed", true
	}

	byConfidence := append([]models.ReportFinding(nil), findings...)
	sort.SliceStable(byConfidence, func(i, j int) bool {
		if byConfidence[i].Confidence != byConfidence[j].Confidence {
			return byConfidence[i].Confidence > byConfidence[j].Confidence
		}
		return byConfidence[i].Category < byConfidence[j].Category
	})

	top := byConfidence[0]
	if top.Confidence >= s.significance {
		return fmt.Sprintf("%s: %s", top.Category, top.Description), false
	}

	limit := 3
	if len(byConfidence) < limit {
		limit = len(byConfidence)
	}
	candidates := make([]string, 0, limit)
	for _, f := range byConfidence[:limit] {
		candidates = append(candidates, fmt.Sprintf("%s (%.2f)", f.Category, f.Confidence))
	}
	return fmt.Sprintf("inconclusive: no finding above significance threshold; candidates: %s", strings.Join(candidates, ", ")), true
}

// aggregateConfidence weights each result by its analyzer's historical
// success rate so reliable analyzers influence the aggregate more. Without
// history it falls back to a plain average.
func (s *Summarizer) aggregateConfidence(accepted []TaskOutcome) float64 {
	if len(accepted) == 0 {
		return 0
	}

	weightedSum, weightTotal := 0.0, 0.0
	plainSum := 0.0
	observed := false
	for _, outcome := range accepted {
		conf := clampUnit(outcome.Result.Confidence)
		plainSum += conf

		weight := 1.0
		if s.perf != nil {
			if snap, ok := s.perf.Snapshot(outcome.Result.AnalyzerName); ok && snap.Attempts() > 0 {
				weight = snap.SuccessRate()
				observed = true
			}
		}
		weightedSum += conf * weight
		weightTotal += weight
	}

	if !observed || weightTotal == 0 {
		return clampUnit(plainSum / float64(len(accepted)))
	}
	return clampUnit(weightedSum / weightTotal)
}

// mergeRemediations unions suggestions across results, deduplicated by
// normalised text and ordered by the confidence of their source result.
func (s *Summarizer) mergeRemediations(accepted []TaskOutcome) []string {
	type ranked struct {
		text       string
		confidence float64
	}

	seen := make(map[string]int)
	var remediations []ranked
	for _, outcome := range accepted {
		source := sourceConfidence(outcome.Result)
		for _, text := range outcome.Result.Remediations {
			if strings.TrimSpace(text) == "" {
				continue
			}
			key := normaliseRemediation(text)
			if idx, ok := seen[key]; ok {
				if source > remediations[idx].confidence {
					remediations[idx].confidence = source
				}
				continue
			}
			seen[key] = len(remediations)
			remediations = append(remediations, ranked{text: text, confidence: source})
		}
	}

	sort.SliceStable(remediations, func(i, j int) bool {
		if remediations[i].confidence != remediations[j].confidence {
			return remediations[i].confidence > remediations[j].confidence
		}
		return remediations[i].text < remediations[j].text
	})

	if len(remediations) > s.maxRemed {
		remediations = remediations[:s.maxRemed]
	}
	out := make([]string, 0, len(remediations))
	for _, r := range remediations {
		out = append(out, r.text)
	}
	return out
}

// sourceConfidence ranks a result's remediations by its strongest finding,
// falling back to the per-result confidence when it carries none.
func sourceConfidence(result *models.AnalysisResult) float64 {
	best := 0.0
	for _, f := range result.Findings {
		if f.Confidence > best {
			best = f.Confidence
		}
	}
	if best == 0 {
		best = result.Confidence
	}
	return clampUnit(best)
}

func normaliseRemediation(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
