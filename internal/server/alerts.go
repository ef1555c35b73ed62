package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stats"
)

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", s.cfg.History.DefaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	limit = min(limit, s.cfg.History.MaxLimit)

	alerts, err := s.history.Read(limit)
	historyFailed(r, err)
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	alerts, err := s.history.Window()
	historyFailed(r, err)
	if !since.IsZero() {
		alerts = stats.Since(alerts, since)
	}
	writeJSON(w, http.StatusOK, stats.Aggregate(alerts, s.now()))
}

func (s *Server) handleAlertPage(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
		return
	}
	size, ok := queryInt(r, "size", 20)
	if !ok || size == 0 {
		writeError(w, http.StatusBadRequest, "size must be a positive integer")
		return
	}
	size = min(size, s.cfg.History.MaxLimit)

	p, err := s.history.Page(page, size)
	historyFailed(r, err)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := s.lookupAlert(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// lookupAlert resolves the alert named by a path value, writing the error
// response itself when it cannot.
func (s *Server) lookupAlert(w http.ResponseWriter, r *http.Request, key string) (models.Alert, bool) {
	id, err := strconv.ParseUint(r.PathValue(key), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return models.Alert{}, false
	}
	alert, found, err := s.history.Find(id)
	historyFailed(r, err)
	if !found {
		writeError(w, http.StatusNotFound, "alert not found")
		return models.Alert{}, false
	}
	return alert, true
}

func (s *Server) handleBySeverity(w http.ResponseWriter, r *http.Request) {
	sev, err := models.ParseSeverity(r.PathValue("severity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts, err := s.history.BySeverity(sev)
	historyFailed(r, err)
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleByIP(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.PathValue("ip"))
	if ip == "" {
		writeError(w, http.StatusBadRequest, "ip required")
		return
	}
	alerts, err := s.history.ByIP(ip)
	historyFailed(r, err)
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleTimeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end is before start")
		return
	}

	alerts, err := s.history.Between(start, end)
	historyFailed(r, err)
	writeJSON(w, http.StatusOK, alerts)
}
