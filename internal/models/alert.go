package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the normalized alert severity shown by the dashboard.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SeverityFromLevel maps a Suricata severity level (1 is most severe) to a Severity.
// Level 2 maps to MEDIUM, so HIGH is never produced here.
func SeverityFromLevel(level int) Severity {
	switch level {
	case 1:
		return SeverityCritical
	case 2:
		return SeverityMedium
	case 3:
		return SeverityLow
	default:
		return SeverityLow
	}
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Severities {
		if sev == known {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// DefaultCategory is used when an alert carries no category.
const DefaultCategory = "Unknown"

// Alert is a normalized intrusion-detection alert.
type Alert struct {
	ID          uint64   `json:"id"`
	Timestamp   string   `json:"timestamp"`
	SourceIP    string   `json:"sourceIp"`
	DestIP      string   `json:"destIp"`
	SourcePort  int      `json:"sourcePort"`
	DestPort    int      `json:"destPort"`
	Protocol    string   `json:"protocol"`
	Signature   string   `json:"signature"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	SignatureID int64    `json:"signatureId,omitempty"`
	Payload     string   `json:"payload"`
	Action      string   `json:"action,omitempty"`

	// At is Timestamp parsed; zero when the timestamp could not be parsed.
	At time.Time `json:"-"`
}

// Alerts is a list of alerts, usually newest first.
type Alerts []Alert
