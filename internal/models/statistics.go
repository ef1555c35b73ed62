package models

// Statistics summarizes a window of alerts for the dashboard cards.
type Statistics struct {
	TotalAlerts    int64 `json:"totalAlerts"`
	CriticalAlerts int64 `json:"criticalAlerts"`
	HighAlerts     int64 `json:"highAlerts"`
	MediumAlerts   int64 `json:"mediumAlerts"`
	LowAlerts      int64 `json:"lowAlerts"`

	AlertsByCategory map[string]int64 `json:"alertsByCategory"`
	TopSourceIPs     map[string]int64 `json:"topSourceIps"`
	TopDestIPs       map[string]int64 `json:"topDestIps"`
	TopSignatures    map[string]int64 `json:"topSignatures"`

	AlertsLastHour    int64 `json:"alertsLastHour"`
	AlertsLast24Hours int64 `json:"alertsLast24Hours"`
	AlertsLast7Days   int64 `json:"alertsLast7Days"`
}

// CountFor returns the counter for a severity.
func (s Statistics) CountFor(sev Severity) int64 {
	switch sev {
	case SeverityCritical:
		return s.CriticalAlerts
	case SeverityHigh:
		return s.HighAlerts
	case SeverityMedium:
		return s.MediumAlerts
	default:
		return s.LowAlerts
	}
}
