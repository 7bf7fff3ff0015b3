package reportserver

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/a-h/templ"

	"toolbench/internal/report"
)

// NewHandler builds the HTTP handler. Reports are rendered from results.json
// on every request, so runs finishing while the server is up appear at once.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("reportserver: output dir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{outputDir: cfg.OutputDir, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("GET /runs/{id}/{$}", s.serveReport)
	mux.HandleFunc("GET /runs/{id}/results.json", s.serveResults)
	return mux, nil
}

type server struct {
	outputDir string
	logger    *slog.Logger
}

// serveIndex lists the runs, newest first.
func (s *server) serveIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := report.ListRuns(s.outputDir)
	if err != nil {
		s.logger.Warn("list runs failed", "dir", s.outputDir, "error", err)
		http.Error(w, "cannot list runs", http.StatusInternalServerError)
		return
	}
	s.render(w, r, report.RunIndexPage(runs))
}

// serveReport renders the report of one run. "latest" names the newest run.
func (s *server) serveReport(w http.ResponseWriter, r *http.Request) {
	results, _, err := report.ResolveRun(s.outputDir, r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.render(w, r, report.ReportPage(results))
}

// serveResults serves the raw results file of one run.
func (s *server) serveResults(w http.ResponseWriter, r *http.Request) {
	_, runDir, err := report.ResolveRun(s.outputDir, r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, filepath.Join(runDir, "results.json"))
}

// render buffers the page so a failed render can still report an error status.
func (s *server) render(w http.ResponseWriter, r *http.Request, page templ.Component) {
	var buf bytes.Buffer
	if err := page.Render(r.Context(), &buf); err != nil {
		s.logger.Warn("render page failed", "path", r.URL.Path, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
