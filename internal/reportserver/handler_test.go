package reportserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"toolbench/internal/runner"
	"toolbench/internal/testutil"
)

// writeRun persists a minimal run under dir.
func writeRun(t *testing.T, dir, runID string, mean float64) {
	t.Helper()
	results := runner.Results{
		RunID:     runID,
		Model:     "test-model",
		Variants:  []string{"sql"},
		StartedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Questions: []runner.QuestionResult{{
			ID:        "q1",
			Question:  "Which <repo> has the most stars?",
			Reference: "acme/rocket",
			Runs:      []runner.VariantRun{{Variant: "sql", Status: runner.StatusOK, Answer: "acme/rocket"}},
		}},
		Summary: []runner.VariantSummary{{Variant: "sql", Questions: 1, Succeeded: 1, Scored: 1, MeanScore: &mean}},
	}
	if _, err := runner.WriteResults(results, dir); err != nil {
		t.Fatalf("write results: %v", err)
	}
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://example.com"+path, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func newTestHandler(t *testing.T, dir string) http.Handler {
	t.Helper()
	handler, err := NewHandler(Config{OutputDir: dir})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestNewHandlerRequiresOutputDir(t *testing.T) {
	if _, err := NewHandler(Config{}); err == nil {
		t.Fatalf("expected error without output dir")
	}
}

// TestIndexListsRunsNewestFirst ensures the root path links every run.
func TestIndexListsRunsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260201T100000Z-aaaa", 0.4)
	writeRun(t, dir, "20260202T100000Z-bbbb", 1)
	handler := newTestHandler(t, dir)

	resp := get(t, handler, "/")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	older := strings.Index(body, "/runs/20260201T100000Z-aaaa/")
	newer := strings.Index(body, "/runs/20260202T100000Z-bbbb/")
	if older < 0 || newer < 0 || newer > older {
		t.Fatalf("expected both runs, newest first:\n%s", body)
	}
	if !strings.Contains(body, "sql 1.00") {
		t.Fatalf("expected best mean score in index:\n%s", body)
	}
}

func TestIndexWithoutRuns(t *testing.T) {
	resp := get(t, newTestHandler(t, t.TempDir()), "/")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "No runs yet") {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
}

// TestReportRendersRun ensures a run report is rendered with escaped content.
func TestReportRendersRun(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260201T100000Z-aaaa", 0.4)
	handler := newTestHandler(t, dir)

	for _, path := range []string{"/runs/20260201T100000Z-aaaa/", "/runs/latest/"} {
		resp := get(t, handler, path)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, resp.Code)
		}
		body := resp.Body.String()
		if !strings.Contains(body, "Which &lt;repo&gt; has the most stars?") {
			t.Fatalf("%s: expected escaped question in report", path)
		}
		if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("%s: unexpected content type %q", path, ct)
		}
	}
}

func TestReportUnknownRun(t *testing.T) {
	resp := get(t, newTestHandler(t, t.TempDir()), "/runs/nope/")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestResultsServesJSON(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260201T100000Z-aaaa", 0.4)
	resp := get(t, newTestHandler(t, dir), "/runs/20260201T100000Z-aaaa/results.json")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"run_id": "20260201T100000Z-aaaa"`) {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestRejectsNonGet(t *testing.T) {
	handler := newTestHandler(t, t.TempDir())
	req := httptest.NewRequest(http.MethodPost, "http://example.com/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

// TestServeStopsOnCancel starts a real listener and shuts it down.
func TestServeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "20260201T100000Z-aaaa", 0.4)
	ctx, cancel := context.WithCancel(testutil.Context(t, 5*time.Second))
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, Config{Addr: "127.0.0.1:0", OutputDir: dir, Ready: func(addr string) { ready <- addr }})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/runs/latest/")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "20260201T100000Z-aaaa") {
		t.Fatalf("unexpected response %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not stop")
	}
}
