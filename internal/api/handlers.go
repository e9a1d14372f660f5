package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/agent"
	"github.com/sentinelstack/sentinel-agent/internal/models"
	"github.com/sentinelstack/sentinel-agent/internal/service"
)

// Handlers exposes the incident analysis API over HTTP JSON.
type Handlers struct {
	svc    *service.AgentService
	logger *slog.Logger
}

// NewHandlers constructs the HTTP handler set.
func NewHandlers(svc *service.AgentService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// RegisterRoutes attaches the API endpoints to a mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/incidents/analyze", requireMethod(http.MethodPost, h.handleAnalyze))
	mux.HandleFunc("/api/v1/healthz", requireMethod(http.MethodGet, h.handleHealthz))
}

// requireMethod replicates the method matching of Go 1.22 ServeMux patterns
// ("POST /path") for toolchains that treat such patterns as literal paths.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

type alarmRequest struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type analyzeRequest struct {
	IncidentID  string            `json:"incident_id"`
	Description string            `json:"description"`
	Logs        []string          `json:"logs"`
	Alarms      []alarmRequest    `json:"alarms"`
	Metadata    map[string]string `json:"metadata"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

type findingResponse struct {
	TaskID      string  `json:"task_id"`
	TaskType    string  `json:"task_type"`
	Analyzer    string  `json:"analyzer"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Evidence    string  `json:"evidence"`
	Confidence  float64 `json:"confidence"`
}

type failedTaskResponse struct {
	TaskID   string `json:"task_id"`
	TaskType string `json:"task_type"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
	LastErr  string `json:"last_error,omitempty"`
}

type analyzeResponse struct {
	ReportID     string               `json:"report_id"`
	IncidentID   string               `json:"incident_id"`
	RootCause    string               `json:"root_cause"`
	Inconclusive bool                 `json:"inconclusive"`
	Confidence   float64              `json:"confidence"`
	Findings     []findingResponse    `json:"findings"`
	Remediations []string             `json:"remediations"`
	FailedTasks  []failedTaskResponse `json:"failed_tasks"`
	CreatedAt    time.Time            `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	incident := toIncident(req)
	report, err := h.svc.AnalyzeIncident(r.Context(), incident)
	if err != nil {
		var invalid *agent.InvalidIncidentError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		h.logger.Error("analyze request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis failed"})
		return
	}

	writeJSON(w, http.StatusOK, toAnalyzeResponse(report))
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toIncident(req analyzeRequest) *models.Incident {
	incident := &models.Incident{
		ID:          req.IncidentID,
		Description: req.Description,
		Logs:        req.Logs,
		Metadata:    req.Metadata,
		OccurredAt:  req.OccurredAt,
	}
	for _, a := range req.Alarms {
		incident.Alarms = append(incident.Alarms, models.Alarm{
			ID:        a.ID,
			Severity:  models.AlarmSeverity(a.Severity),
			Message:   a.Message,
			Source:    a.Source,
			Timestamp: a.Timestamp,
		})
	}
	return incident
}

func toAnalyzeResponse(report *models.Report) analyzeResponse {
	resp := analyzeResponse{
		ReportID:     report.ReportID,
		IncidentID:   report.IncidentID,
		RootCause:    report.RootCause,
		Inconclusive: report.Inconclusive,
		Confidence:   report.Confidence,
		Remediations: report.Remediations,
		CreatedAt:    report.CreatedAt,
	}
	for _, f := range report.Findings {
		resp.Findings = append(resp.Findings, findingResponse{
			TaskID:      f.TaskID,
			TaskType:    string(f.TaskType),
			Analyzer:    f.AnalyzerName,
			Category:    f.Category,
			Description: f.Description,
			Evidence:    f.Evidence,
			Confidence:  f.Confidence,
		})
	}
	for _, t := range report.FailedTasks {
		resp.FailedTasks = append(resp.FailedTasks, failedTaskResponse{
			TaskID:   t.TaskID,
			TaskType: string(t.TaskType),
			Reason:   string(t.Reason),
			Attempts: t.Attempts,
			LastErr:  t.LastErr,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
