package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.RunsTotal.Inc()
	m.PagesScraped.Add(3)
	m.PayloadsRejected.Inc()
	m.IncDownload(true)
	m.IncDownload(true)
	m.IncDownload(false)

	if got := testutil.ToFloat64(m.RunsTotal); got != 1 {
		t.Errorf("Expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.PagesScraped); got != 3 {
		t.Errorf("Expected 3 pages, got %v", got)
	}
	if got := testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("Expected 2 successful downloads, got %v", got)
	}
	if got := testutil.ToFloat64(m.DownloadsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed download, got %v", got)
	}
}

func TestMetricsPrivateRegistries(t *testing.T) {
	// Two instances must not interfere or panic on duplicate registration
	a := New()
	b := New()

	a.RunsTotal.Inc()
	if got := testutil.ToFloat64(b.RunsTotal); got != 0 {
		t.Errorf("Expected independent registries, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RunsTotal.Inc()
	m.ScrollIterations.Observe(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "pagegrab_runs_total 1") {
		t.Error("Expected runs counter in exposition")
	}
	if !strings.Contains(body, "pagegrab_scroll_iterations") {
		t.Error("Expected scroll histogram in exposition")
	}
}
