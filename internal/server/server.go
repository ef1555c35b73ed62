// Package server exposes alert history, statistics and the live alert stream
// over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AzizK97/VarGuard/internal/analysis"
	"github.com/AzizK97/VarGuard/internal/config"
	"github.com/AzizK97/VarGuard/internal/history"
	"github.com/AzizK97/VarGuard/internal/scan"
	"github.com/AzizK97/VarGuard/internal/stream"
)

// Deps are the collaborators behind the HTTP handlers.
type Deps struct {
	History   *history.Reader
	Hub       *stream.Hub
	Assistant *analysis.Assistant
	Scans     *scan.Store
	// Gatherer backs the metrics endpoint. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server holds the HTTP handlers.
type Server struct {
	cfg       *config.Config
	history   *history.Reader
	hub       *stream.Hub
	assistant *analysis.Assistant
	scans     *scan.Store
	gatherer  prometheus.Gatherer
	now       func() time.Time
}

// New returns a Server. A nil Assistant answers with rule-based text and a nil
// Scans gets an empty store.
func New(cfg *config.Config, d Deps) *Server {
	if d.Assistant == nil {
		d.Assistant = analysis.New(nil, analysis.Options{})
	}
	if d.Scans == nil {
		d.Scans = scan.NewStore()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:       cfg,
		history:   d.History,
		hub:       d.Hub,
		assistant: d.Assistant,
		scans:     d.Scans,
		gatherer:  d.Gatherer,
		now:       time.Now,
	}
}

// RegisterRoutes adds every route to mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/suricata/alerts/recent", s.handleRecent)
	mux.HandleFunc("GET /api/suricata/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/suricata/alerts/stream", s.handleStream)
	mux.HandleFunc("GET /api/suricata/alerts/ws", s.handleWS)
	mux.HandleFunc("GET /api/suricata/alerts", s.handleAlertPage)
	mux.HandleFunc("GET /api/suricata/alerts/{id}", s.handleAlert)
	mux.HandleFunc("GET /api/suricata/alerts/severity/{severity}", s.handleBySeverity)
	mux.HandleFunc("GET /api/suricata/alerts/ip/{ip}", s.handleByIP)
	mux.HandleFunc("GET /api/suricata/alerts/timerange", s.handleTimeRange)

	mux.HandleFunc("POST /api/ai/analyze/{alertId}", s.handleAnalyze)
	mux.HandleFunc("POST /api/ai/remediation/{alertId}", s.handleRemediation)
	mux.HandleFunc("GET /api/ai/summary", s.handleSummary)
	mux.HandleFunc("GET /api/ai/status", s.handleAIStatus)

	mux.HandleFunc("POST /api/network/nmap/scan", s.handleScan)
	mux.HandleFunc("GET /api/network/nmap/results", s.handleScanResults)
	mux.HandleFunc("GET /api/network/vulnerabilities", s.handleVulnerabilities)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET "+s.cfg.Server.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routes wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.cors(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html>
<head><title>VarGuard</title></head>
<body>
<h1>VarGuard</h1>
<p><a href="/api/suricata/alerts/recent">Recent alerts</a></p>
<p><a href="/api/suricata/statistics">Statistics</a></p>
<p><a href="%s">Metrics</a></p>
</body>
</html>`, s.cfg.Server.MetricsPath)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) allowOrigin(origin string) bool {
	origins := s.cfg.Server.AllowedOrigins
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowOrigin(origin) {
			h := w.Header()
			if slices.Contains(s.cfg.Server.AllowedOrigins, "*") {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// historyFailed logs a history read error. Partial results are still served.
func historyFailed(r *http.Request, err error) {
	if err != nil {
		slog.Warn("history read failed", "path", r.URL.Path, "error", err)
	}
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
