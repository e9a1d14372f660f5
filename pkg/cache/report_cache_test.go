package cache

import (
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-agent/internal/models"
)

func TestReportCacheSetGet(t *testing.T) {
	c := NewReportCache()
	report := &models.Report{ReportID: "r-1", IncidentID: "inc-1"}

	c.Set("inc-1", report, 0)
	got, ok := c.Get("inc-1")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.ReportID != "r-1" {
		t.Fatalf("unexpected report %+v", got)
	}

	if _, ok := c.Get("inc-2"); ok {
		t.Fatalf("expected miss for unknown incident")
	}
}

func TestReportCacheExpiry(t *testing.T) {
	c := NewReportCache()
	c.Set("inc-1", &models.Report{ReportID: "r-1"}, time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("inc-1"); ok {
		t.Fatalf("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry removed, len=%d", c.Len())
	}
}

func TestReportCacheDelete(t *testing.T) {
	c := NewReportCache()
	c.Set("inc-1", &models.Report{ReportID: "r-1"}, 0)
	c.Delete("inc-1")
	if _, ok := c.Get("inc-1"); ok {
		t.Fatalf("expected entry deleted")
	}
}

func TestReportCacheIgnoresNil(t *testing.T) {
	c := NewReportCache()
	c.Set("inc-1", nil, 0)
	if c.Len() != 0 {
		t.Fatalf("nil reports must not be stored")
	}
}
