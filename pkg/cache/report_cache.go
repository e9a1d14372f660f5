package cache

import (
	"sync"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

// ReportCache memoizes recently produced reports by incident ID so repeated
// submissions during an alert storm reuse the existing analysis.
type ReportCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	report    *models.Report
	expiresAt time.Time
}

// NewReportCache creates an empty report cache.
func NewReportCache() *ReportCache {
	return &ReportCache{entries: make(map[string]entry)}
}

// Get returns the cached report for an incident if present and not expired.
func (c *ReportCache) Get(incidentID string) (*models.Report, bool) {
	c.mu.RLock()
	e, ok := c.entries[incidentID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, incidentID)
		c.mu.Unlock()
		return nil, false
	}
	return e.report, true
}

// Set stores a report with optional TTL. A zero TTL keeps it until Delete.
func (c *ReportCache) Set(incidentID string, report *models.Report, ttl time.Duration) {
	if report == nil {
		return
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[incidentID] = entry{report: report, expiresAt: expires}
	c.mu.Unlock()
}

// Delete removes an entry.
func (c *ReportCache) Delete(incidentID string) {
	c.mu.Lock()
	delete(c.entries, incidentID)
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
