package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"

	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stats"
)

var analyzeTemplate = prompts.NewPromptTemplate(`
You are an advanced Cybersecurity AI Assistant. Analyze the following intrusion detection alert.

ALERT DATA:
{{.alert}}

RESPONSE FORMAT (Markdown):
### Threat Analysis
[Detailed technical explanation of what is happening]

### Severity & Impact
[Assessment of severity and potential business impact]

### Recommended Remediation
1. [Actionable step 1]
2. [Actionable step 2]
3. [Actionable step 3]

### Investigation Commands
` + "```bash" + `
[Provide 2-3 relevant Linux/Network commands to investigate this]
` + "```" + `

Keep the tone professional, concise, and actionable.`, []string{"alert"})

var remediationTemplate = prompts.NewPromptTemplate(`
You are a cybersecurity expert. Provide ONLY specific remediation steps for this security alert.

Alert:
{{.alert}}

Provide 5-7 concrete, actionable steps to remediate this security issue.
Format as a numbered list. Be specific and technical.`, []string{"alert"})

var summaryTemplate = prompts.NewPromptTemplate(`
You are a CISO-level AI Security Consultant. Provide a strategic summary of the following security events.

EVENTS SUMMARY:
{{.events}}

RESPONSE FORMAT (Markdown):
### Executive Summary
[High-level overview of the security posture]

### Top Security Concerns
* **[Concern 1]**: [Brief explanation]
* **[Concern 2]**: [Brief explanation]

### Strategic Recommendations
1. [Strategic recommendation 1]
2. [Strategic recommendation 2]

### Threat Intelligence
[Brief insight on observed patterns]`, []string{"events"})

const displayLayout = "2006-01-02 15:04:05"

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func portOrNA(p int) string {
	if p == 0 {
		return "N/A"
	}
	return fmt.Sprint(p)
}

// describeAlert renders an alert as the ALERT DATA block of a prompt.
func describeAlert(a models.Alert) string {
	ts := a.Timestamp
	if !a.At.IsZero() {
		ts = a.At.UTC().Format(displayLayout)
	}
	sid := "N/A"
	if a.SignatureID != 0 {
		sid = fmt.Sprint(a.SignatureID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Timestamp: %s\n", orUnknown(ts))
	fmt.Fprintf(&b, "Source IP: %s (Port: %s)\n", orUnknown(a.SourceIP), portOrNA(a.SourcePort))
	fmt.Fprintf(&b, "Destination IP: %s (Port: %s)\n", orUnknown(a.DestIP), portOrNA(a.DestPort))
	fmt.Fprintf(&b, "Protocol: %s\n", orUnknown(a.Protocol))
	fmt.Fprintf(&b, "Signature: %s\n", orUnknown(a.Signature))
	fmt.Fprintf(&b, "Category: %s\n", orUnknown(a.Category))
	fmt.Fprintf(&b, "Severity: %s\n", orUnknown(string(a.Severity)))
	fmt.Fprintf(&b, "Signature ID: %s\n", sid)
	fmt.Fprintf(&b, "Action: %s\n", orUnknown(a.Action))
	return b.String()
}

func joinCounts(counts []stats.Count, suffix string) string {
	var parts []string
	for _, c := range counts {
		if c.Key == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%d%s)", c.Key, c.Count, suffix))
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

// describePeriod renders the statistics of a period as the EVENTS SUMMARY block.
func describePeriod(s models.Statistics, start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time Period: %s to %s\n", start.UTC().Format(displayLayout), end.UTC().Format(displayLayout))
	fmt.Fprintf(&b, "Total Alerts: %d\n\n", s.TotalAlerts)
	b.WriteString("Severity Distribution:\n")
	fmt.Fprintf(&b, "- Critical: %d\n", s.CriticalAlerts)
	fmt.Fprintf(&b, "- High: %d\n", s.HighAlerts)
	fmt.Fprintf(&b, "- Medium: %d\n", s.MediumAlerts)
	fmt.Fprintf(&b, "- Low: %d\n\n", s.LowAlerts)
	fmt.Fprintf(&b, "Top Alert Categories: %s\n\n", joinCounts(stats.TopN(s.AlertsByCategory, 5), ""))
	fmt.Fprintf(&b, "Top Source IPs: %s\n", joinCounts(stats.TopN(s.TopSourceIPs, 5), " alerts"))
	return b.String()
}
