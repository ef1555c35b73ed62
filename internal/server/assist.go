package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/AzizK97/VarGuard/internal/scan"
)

type analysisResponse struct {
	AlertID     uint64 `json:"alertId"`
	Analysis    string `json:"analysis,omitempty"`
	Remediation string `json:"remediation,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type summaryResponse struct {
	Summary    string `json:"summary"`
	Start      string `json:"start"`
	End        string `json:"end"`
	AlertCount int    `json:"alertCount"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	alert, ok := s.lookupAlert(w, r, "alertId")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		AlertID:   alert.ID,
		Analysis:  s.assistant.Analyze(r.Context(), alert),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRemediation(w http.ResponseWriter, r *http.Request) {
	alert, ok := s.lookupAlert(w, r, "alertId")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysisResponse{
		AlertID:     alert.ID,
		Remediation: s.assistant.Remediate(r.Context(), alert),
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	hours, ok := queryInt(r, "hours", 24)
	if !ok || hours == 0 {
		writeError(w, http.StatusBadRequest, "hours must be a positive integer")
		return
	}

	end := s.now()
	start := end.Add(-time.Duration(hours) * time.Hour)
	alerts, err := s.history.Between(start, end)
	historyFailed(r, err)

	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:    s.assistant.Summarize(r.Context(), alerts, start, end),
		Start:      start.UTC().Format(time.RFC3339),
		End:        end.UTC().Format(time.RFC3339),
		AlertCount: len(alerts),
	})
}

func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"available": s.assistant.Available()})
}

type scanRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.scans.Scan(req.Target)
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started", "target": result.TargetIP})
}

func (s *Server) handleScanResults(w http.ResponseWriter, r *http.Request) {
	result, err := s.scans.Result(r.URL.Query().Get("target"))
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVulnerabilities(w http.ResponseWriter, r *http.Request) {
	vulns, err := s.scans.Vulnerabilities(r.URL.Query().Get("target"))
	if err != nil {
		writeScanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vulns)
}

func writeScanError(w http.ResponseWriter, err error) {
	if errors.Is(err, scan.ErrTargetRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
