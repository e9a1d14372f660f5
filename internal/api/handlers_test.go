package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentinelstack/sentinel-agent/internal/agent"
	"github.com/sentinelstack/sentinel-agent/internal/models"
	"github.com/sentinelstack/sentinel-agent/internal/service"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) Name() string { return "fixed" }

func (fixedAnalyzer) SupportedTaskTypes() []models.TaskType {
	return []models.TaskType{models.TaskTypeLogAnalysis}
}

func (fixedAnalyzer) CanHandle(task *models.Task) bool {
	return task != nil && len(task.Payload.Logs) > 0
}

func (fixedAnalyzer) Analyze(_ context.Context, task *models.Task) (models.AnalysisResult, error) {
	return models.AnalysisResult{
		AnalyzerName: "fixed",
		Confidence:   0.9,
		Findings: []models.Finding{
			{Category: "database", Description: "pool exhausted", Evidence: "log:1", Confidence: 0.9},
		},
		Remediations: []string{"Scale out the pool"},
	}, nil
}

func newTestMux() *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reallocator := agent.NewReallocator(logger, agent.ReallocatorConfig{RetryLimit: 3, MinAcceptableConfidence: 0.2, SmoothingFactor: 0.3})
	selector := agent.NewSelector(logger, reallocator)
	selector.Register(fixedAnalyzer{})
	summarizer := agent.NewSummarizer(logger, agent.SummarizerConfig{SignificanceThreshold: 0.5}, reallocator, selector)
	planner := agent.NewPlanner(logger, selector, reallocator, summarizer, agent.PlannerConfig{})
	svc := service.NewAgentService(logger, planner)

	mux := http.NewServeMux()
	NewHandlers(svc, logger).RegisterRoutes(mux)
	return mux
}

func TestAnalyzeEndpoint(t *testing.T) {
	mux := newTestMux()

	body, _ := json.Marshal(map[string]any{
		"incident_id": "inc-1",
		"description": "checkout latency spike",
		"logs":        []string{"ERROR db: pool exhausted"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IncidentID != "inc-1" {
		t.Fatalf("unexpected incident id %s", resp.IncidentID)
	}
	if resp.RootCause != "database: pool exhausted" {
		t.Fatalf("unexpected root cause %q", resp.RootCause)
	}
	if len(resp.Findings) != 1 || resp.Findings[0].Analyzer != "fixed" {
		t.Fatalf("unexpected findings %+v", resp.Findings)
	}
	if resp.Inconclusive {
		t.Fatalf("expected conclusive analysis")
	}
}

func TestAnalyzeEndpointRejectsMissingID(t *testing.T) {
	mux := newTestMux()

	body, _ := json.Marshal(map[string]any{"logs": []string{"ERROR x"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/analyze", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Fatalf("expected error message in body")
	}
}

func TestAnalyzeEndpointRejectsMalformedBody(t *testing.T) {
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/incidents/analyze", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeEndpointRejectsWrongMethod(t *testing.T) {
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/analyze", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealthzEndpoint(t *testing.T) {
	mux := newTestMux()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("unexpected payload %v", resp)
	}
}
