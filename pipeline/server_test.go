package pipeline

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/matteodefelice/pypsa-entsoe/report"
)

func testRunner(t *testing.T, extra string) *Runner {
	t.Helper()
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+extra))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	r, err := NewRunner(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestNewWebServerDisabled(t *testing.T) {
	r := testRunner(t, "")
	if ws := NewWebServer(r, zerolog.Nop()); ws != nil {
		t.Fatal("port 0 should disable the server")
	}
	// nil receiver is a no-op
	var ws *WebServer
	if err := ws.Start(context.Background()); err != nil {
		t.Errorf("Start on nil server: %v", err)
	}
	if err := ws.Stop(context.Background()); err != nil {
		t.Errorf("Stop on nil server: %v", err)
	}
}

func TestHealthHandler(t *testing.T) {
	r := testRunner(t, "server:\n  port: 18080\n")
	ws := NewWebServer(r, zerolog.Nop())
	if ws == nil {
		t.Fatal("server should be enabled")
	}

	rec := httptest.NewRecorder()
	ws.healthHandler(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if health.Pipeline.RefreshPeriod != "24h0m0s" {
		t.Errorf("RefreshPeriod = %q", health.Pipeline.RefreshPeriod)
	}

	rec = httptest.NewRecorder()
	ws.healthHandler(rec, httptest.NewRequest("POST", "/api/health", nil))
	if rec.Code != 405 {
		t.Errorf("POST status %d, want 405", rec.Code)
	}
}

func TestReadinessBeforeFirstRun(t *testing.T) {
	r := testRunner(t, "server:\n  port: 18080\n")
	ws := NewWebServer(r, zerolog.Nop())

	rec := httptest.NewRecorder()
	ws.readinessHandler(rec, httptest.NewRequest("GET", "/api/ready", nil))
	if rec.Code != 503 {
		t.Fatalf("status %d, want 503 before the first run", rec.Code)
	}

	var ready map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatal(err)
	}
	if ready["ready"] != false {
		t.Errorf("ready = %v, want false", ready["ready"])
	}
}

func TestStatusReportsLastRun(t *testing.T) {
	r := testRunner(t, "server:\n  port: 18080\n")
	ws := NewWebServer(r, zerolog.Nop())

	ws.mu.Lock()
	ws.lastRun = &RunResult{
		ID:         "run-1",
		StartedAt:  time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2018, 1, 1, 0, 5, 0, 0, time.UTC),
	}
	ws.mu.Unlock()

	rec := httptest.NewRecorder()
	ws.statusHandler(rec, httptest.NewRequest("GET", "/api/status", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	run, ok := status["run"].(map[string]any)
	if !ok {
		t.Fatalf("status has no run object: %v", status)
	}
	if run["id"] != "run-1" {
		t.Errorf("run id = %v, want run-1", run["id"])
	}
}

func TestLatestRunAndDispatchHandlers(t *testing.T) {
	r := testRunner(t, "server:\n  port: 18080\n")
	ws := NewWebServer(r, zerolog.Nop())

	rec := httptest.NewRecorder()
	ws.latestRunHandler(rec, httptest.NewRequest("GET", "/api/runs/latest", nil))
	if rec.Code != 404 {
		t.Fatalf("status %d, want 404 before the first run", rec.Code)
	}

	ws.mu.Lock()
	ws.lastRun = &RunResult{
		ID: "run-2",
		Rows: []report.Row{
			{Snapshot: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC), Bus: "DE", Type: "RES", Production: 800},
		},
	}
	ws.mu.Unlock()

	rec = httptest.NewRecorder()
	ws.latestRunHandler(rec, httptest.NewRequest("GET", "/api/runs/latest", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	ws.dispatchHandler(rec, httptest.NewRequest("GET", "/api/dispatch", nil))
	if rec.Code != 200 {
		t.Fatalf("dispatch status %d, want 200", rec.Code)
	}
	var rows []report.Row
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Type != "RES" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h3m4s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
