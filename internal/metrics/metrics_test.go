package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vigil/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMetricsExposeRecordedValues(t *testing.T) {
	m := metrics.New()
	m.IncrementStep("processed")
	m.IncrementStep("processed")
	m.IncrementVerdict(true)
	m.ObserveFetch(2 * time.Second)
	m.ObserveCheck(10 * time.Millisecond)
	m.IncrementSweepsCompleted()
	m.SetState(true, false, true)

	body := scrape(t, m)
	for _, want := range []string{
		`vigil_sweep_steps_total{outcome="processed"} 2`,
		`vigil_objects_verified_total{result="corrupted"} 1`,
		`vigil_fetch_duration_seconds_count 1`,
		`vigil_check_duration_seconds_count 1`,
		`vigil_sweeps_completed_total 1`,
		`vigil_sweep_active 1`,
		`vigil_sweep_running 0`,
		`vigil_sweep_waiting 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *metrics.Metrics
	m.IncrementStep("failed")
	m.IncrementVerdict(false)
	m.ObserveFetch(time.Second)
	m.ObserveCheck(time.Second)
	m.IncrementSweepsCompleted()
	m.SetState(true, true, true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestNewUsesIndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.IncrementSweepsCompleted()
	if strings.Contains(scrape(t, b), "vigil_sweeps_completed_total 1") {
		t.Fatal("registries should not share state")
	}
}
