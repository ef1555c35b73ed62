// Package stats computes dashboard statistics over a window of alerts.
package stats

import (
	"sort"
	"time"

	"github.com/AzizK97/VarGuard/internal/models"
)

// Windows used for the recent-activity counters.
const (
	LastHour    = time.Hour
	Last24Hours = 24 * time.Hour
	Last7Days   = 7 * 24 * time.Hour
)

// Aggregate computes Statistics over alerts as of now. Windows are half-open,
// (now-d, now]. Alerts without a parsed timestamp count toward totals and maps
// but toward no window.
func Aggregate(alerts []models.Alert, now time.Time) models.Statistics {
	s := models.Statistics{
		TotalAlerts:      int64(len(alerts)),
		AlertsByCategory: make(map[string]int64),
		TopSourceIPs:     make(map[string]int64),
		TopDestIPs:       make(map[string]int64),
		TopSignatures:    make(map[string]int64),
	}

	for _, a := range alerts {
		switch a.Severity {
		case models.SeverityCritical:
			s.CriticalAlerts++
		case models.SeverityHigh:
			s.HighAlerts++
		case models.SeverityMedium:
			s.MediumAlerts++
		default:
			s.LowAlerts++
		}

		s.AlertsByCategory[a.Category]++
		s.TopSourceIPs[a.SourceIP]++
		s.TopDestIPs[a.DestIP]++
		s.TopSignatures[a.Signature]++

		if a.At.IsZero() || a.At.After(now) {
			continue
		}
		if a.At.After(now.Add(-LastHour)) {
			s.AlertsLastHour++
		}
		if a.At.After(now.Add(-Last24Hours)) {
			s.AlertsLast24Hours++
		}
		if a.At.After(now.Add(-Last7Days)) {
			s.AlertsLast7Days++
		}
	}
	return s
}

// Since returns the alerts with a timestamp at or after t.
func Since(alerts []models.Alert, t time.Time) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if !a.At.IsZero() && !a.At.Before(t) {
			out = append(out, a)
		}
	}
	return out
}

// Count is one entry of a ranked map.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// TopN returns the n largest entries of m, by count descending then key
// ascending. n <= 0 returns every entry.
func TopN(m map[string]int64, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
