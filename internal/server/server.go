package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/internal/report"
)

// Launcher starts a run of the named suite asynchronously. The server never
// blocks a request on run execution; the run ID arrives on the websocket
// feed with the run_started event.
type Launcher interface {
	Launch(suiteName string) error
	SuiteNames() []string
}

// Server exposes the run archive and live progress over HTTP.
type Server struct {
	config   *common.Config
	logger   arbor.ILogger
	store    *report.ResultStore
	hub      *Hub
	launcher Launcher
	router   *http.ServeMux
	server   *http.Server
}

// New creates the results server.
func New(config *common.Config, logger arbor.ILogger, store *report.ResultStore, hub *Hub, launcher Launcher) *Server {
	s := &Server{
		config:   config,
		logger:   logger,
		store:    store,
		hub:      hub,
		launcher: launcher,
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/api/run", s.handleLaunch)
	mux.HandleFunc("/ws", s.hub.HandleWS)
	return mux
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Msg("Results server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down results server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "specto",
		"version":    common.GetVersion(),
		"target":     s.config.Target.BaseURL,
		"suites":     s.launcher.SuiteNames(),
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	suiteFilter := r.URL.Query().Get("suite")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := s.store.ListRuns(suiteFilter, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Suite string `json:"suite"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Suite == "" {
		http.Error(w, "Request body must name a suite", http.StatusBadRequest)
		return
	}

	if err := s.launcher.Launch(req.Suite); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"suite":  req.Suite,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already out; nothing recoverable here.
		_ = err
	}
}

// indexPage is a minimal dashboard: run history plus a live progress feed
// over the websocket.
const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Specto</title>
<style>
body { font-family: monospace; margin: 2em; background: #111; color: #ddd; }
h1 { color: #8cf; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { border: 1px solid #444; padding: 4px 10px; text-align: left; }
.passed { color: #6d6; } .failed { color: #e66; } .skipped { color: #cc6; }
#feed { max-height: 20em; overflow-y: auto; border: 1px solid #444; padding: 8px; }
</style>
</head>
<body>
<h1>Specto</h1>
<h2>Runs</h2>
<table id="runs"><tr><th>ID</th><th>Suite</th><th>Started</th><th>Passed</th><th>Failed</th><th>Skipped</th></tr></table>
<h2>Live</h2>
<div id="feed"></div>
<script>
fetch('/api/runs').then(r => r.json()).then(runs => {
  const table = document.getElementById('runs');
  (runs || []).forEach(run => {
    const row = table.insertRow();
    row.innerHTML = '<td>' + run.id + '</td><td>' + run.suite + '</td><td>' + run.started_at +
      '</td><td class="passed">' + run.passed + '</td><td class="failed">' + run.failed +
      '</td><td class="skipped">' + run.skipped + '</td>';
  });
});
const ws = new WebSocket('ws://' + location.host + '/ws');
ws.onmessage = ev => {
  const msg = JSON.parse(ev.data);
  const line = document.createElement('div');
  line.textContent = msg.type + ' ' + JSON.stringify(msg.payload);
  const feed = document.getElementById('feed');
  feed.appendChild(line);
  feed.scrollTop = feed.scrollHeight;
};
</script>
</body>
</html>
`
