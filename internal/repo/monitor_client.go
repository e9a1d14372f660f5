package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// MonitorClient fetches log lines and alarm records for an incident window
// from a monitoring backend. It backfills incidents that arrive carrying only
// an identifier; the orchestration core itself never requires it.
type MonitorClient struct {
	baseURL    string
	logsPath   string
	alarmsPath string
	httpClient *http.Client
}

// NewMonitorClient constructs a client targeting the configured monitoring backend.
func NewMonitorClient(baseURL, logsPath, alarmsPath string, timeout time.Duration) *MonitorClient {
	return &MonitorClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		logsPath:   logsPath,
		alarmsPath: alarmsPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchLogLines queries the monitoring backend for raw log lines in the window.
func (c *MonitorClient) FetchLogLines(ctx context.Context, incidentID string, start, end time.Time) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("monitor client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("monitor base URL not configured")
	}

	payload := map[string]interface{}{
		"incident_id": incidentID,
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
	}

	var response struct {
		Lines []string `json:"lines"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.logsPath), payload, &response); err != nil {
		return nil, fmt.Errorf("monitor logs request failed: %w", err)
	}
	return response.Lines, nil
}

// FetchAlarms queries the monitoring backend for alarms in the window.
func (c *MonitorClient) FetchAlarms(ctx context.Context, incidentID string, start, end time.Time) ([]models.Alarm, error) {
	if c == nil {
		return nil, fmt.Errorf("monitor client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("monitor base URL not configured")
	}

	payload := map[string]interface{}{
		"incident_id": incidentID,
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
	}

	var response struct {
		Alarms []struct {
			ID        string    `json:"id"`
			Severity  string    `json:"severity"`
			Message   string    `json:"message"`
			Source    string    `json:"source"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"alarms"`
	}

	if err := c.postJSON(ctx, c.resolvePath(c.alarmsPath), payload, &response); err != nil {
		return nil, fmt.Errorf("monitor alarms request failed: %w", err)
	}

	alarms := make([]models.Alarm, 0, len(response.Alarms))
	for _, a := range response.Alarms {
		alarms = append(alarms, models.Alarm{
			ID:        a.ID,
			Severity:  models.AlarmSeverity(strings.ToLower(a.Severity)),
			Message:   a.Message,
			Source:    a.Source,
			Timestamp: a.Timestamp,
		})
	}
	return alarms, nil
}

func (c *MonitorClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *MonitorClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("monitor backend returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
