package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stats"
)

const fallbackFooter = "\n\n*Generated by AI Security Assistant (Fallback Mode)*"

type threat int

const (
	threatGeneric threat = iota
	threatPortScan
	threatDoS
	threatSQLInjection
	threatSSH
)

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// classify guesses the kind of attack from the alert's signature and category.
func classify(a models.Alert) threat {
	text := strings.ToLower(a.Signature + " " + a.Category)
	switch {
	case containsAny(text, "scan", "nmap"):
		return threatPortScan
	case containsAny(text, "flood", " dos", "dos ", "ddos", "denial"):
		return threatDoS
	case containsAny(text, "sql", "injection", "union select"):
		return threatSQLInjection
	case containsAny(text, "ssh", "login", "brute"):
		return threatSSH
	default:
		return threatGeneric
	}
}

// fallbackAnalysis is the rule-based analysis used when no model is available.
func fallbackAnalysis(a models.Alert) string {
	src, dst := orUnknown(a.SourceIP), orUnknown(a.DestIP)

	var b strings.Builder
	b.WriteString("### AI Security Analysis\n\n")
	switch classify(a) {
	case threatPortScan:
		b.WriteString("**Threat Detected**: Network Reconnaissance (Port Scanning)\n\n")
		fmt.Fprintf(&b, "The detected activity indicates a systematic attempt by **%s** to probe open ports on your network. ", src)
		b.WriteString("This is typically a precursor to a targeted attack, where an adversary maps out your attack surface.\n\n")
		b.WriteString("### Impact Assessment\n")
		b.WriteString("* **Severity**: MEDIUM to HIGH\n")
		fmt.Fprintf(&b, "* **Risk**: Exposure of vulnerable services on host **%s** and potential exploitation.\n\n", dst)
		b.WriteString("### Remediation Steps\n")
		fmt.Fprintf(&b, "1. **Block Source**: Immediately block the source IP **%s** at the firewall level.\n", src)
		fmt.Fprintf(&b, "2. **Review Rules**: Ensure only necessary ports are open to the internet on **%s**.\n", dst)
		b.WriteString("3. **Enable IPS**: Activate Intrusion Prevention System to drop scan packets automatically.\n\n")
		b.WriteString("### Investigation\n```bash\n")
		fmt.Fprintf(&b, "# Check current connections from source\nnetstat -an | grep %s\n", src)
		fmt.Fprintf(&b, "# Analyze firewall logs\ngrep %s /var/log/syslog\n```", src)
	case threatDoS:
		b.WriteString("**Threat Detected**: Denial of Service (DoS) Attempt\n\n")
		fmt.Fprintf(&b, "High-volume traffic detected from **%s** targeting **%s**. ", src, dst)
		b.WriteString("This pattern suggests a SYN Flood or UDP Flood attack aimed at exhausting system resources.\n\n")
		b.WriteString("### Impact Assessment\n")
		b.WriteString("* **Severity**: HIGH to CRITICAL\n")
		fmt.Fprintf(&b, "* **Risk**: Service unavailability for **%s** and potential system crash.\n\n", dst)
		b.WriteString("### Remediation Steps\n")
		fmt.Fprintf(&b, "1. **Rate Limiting**: Implement strict rate limiting on incoming connections from **%s**.\n", src)
		fmt.Fprintf(&b, "2. **Block IP**: Add **%s** to the blocklist immediately.\n", src)
		b.WriteString("3. **Upstream Filtering**: Contact ISP if traffic saturates the link.\n\n")
		b.WriteString("### Investigation\n```bash\n")
		fmt.Fprintf(&b, "# Monitor traffic in real-time\ntcpdump -i eth0 -n src %s\n```", src)
	case threatSQLInjection:
		b.WriteString("**Threat Detected**: SQL Injection Attempt\n\n")
		fmt.Fprintf(&b, "Malicious SQL syntax detected in HTTP request parameters from **%s**. ", src)
		fmt.Fprintf(&b, "The attacker is attempting to manipulate database queries on **%s**.\n\n", dst)
		b.WriteString("### Impact Assessment\n")
		b.WriteString("* **Severity**: CRITICAL\n")
		fmt.Fprintf(&b, "* **Risk**: Data breach, unauthorized access, and data loss on **%s**.\n\n", dst)
		b.WriteString("### Remediation Steps\n")
		fmt.Fprintf(&b, "1. **Block Source**: Block **%s** at the WAF or firewall.\n", src)
		b.WriteString("2. **Input Validation**: Ensure all user inputs are sanitized and parameterized.\n")
		b.WriteString("3. **Audit Logs**: Check database logs for any successful query executions.\n\n")
		b.WriteString("### Investigation\n```bash\n")
		fmt.Fprintf(&b, "# Search access logs for suspicious patterns\ngrep -i \"union select\" /var/log/nginx/access.log | grep %s\n```", src)
	case threatSSH:
		b.WriteString("**Threat Detected**: SSH Brute-Force/Login Attempt\n\n")
		fmt.Fprintf(&b, "Repeated failed SSH login attempts from **%s** detected. ", src)
		fmt.Fprintf(&b, "This indicates an adversary is trying to gain unauthorized access to **%s**.\n\n", dst)
		b.WriteString("### Impact Assessment\n")
		b.WriteString("* **Severity**: HIGH\n")
		b.WriteString("* **Risk**: Unauthorized system access, privilege escalation, and data exfiltration.\n\n")
		b.WriteString("### Remediation Steps\n")
		fmt.Fprintf(&b, "1. **Block Source**: Block **%s** at the firewall.\n", src)
		b.WriteString("2. **Disable Password Auth**: Enforce key-based authentication for SSH.\n")
		b.WriteString("3. **Rate Limit SSH**: Implement fail2ban to block repeated failed logins.\n\n")
		b.WriteString("### Investigation\n```bash\n")
		fmt.Fprintf(&b, "# Check SSH authentication logs\ngrep \"Failed password\" /var/log/auth.log | grep %s\n```", src)
	default:
		b.WriteString("**Threat Detected**: Anomalous Network Activity\n\n")
		fmt.Fprintf(&b, "Traffic patterns from **%s** to **%s** deviate from established baselines. ", src, dst)
		fmt.Fprintf(&b, "Signature: **%s**.\n\n", orUnknown(a.Signature))
		b.WriteString("### Impact Assessment\n")
		b.WriteString("* **Severity**: Requires Manual Triage\n")
		b.WriteString("* **Risk**: Undetermined. Caution advised.\n\n")
		b.WriteString("### Remediation Steps\n")
		fmt.Fprintf(&b, "1. **Isolate**: Temporarily quarantine the affected host **%s**.\n", dst)
		b.WriteString("2. **Analyze Payload**: Review the full packet capture for this alert.\n")
		b.WriteString("3. **Update Signatures**: Ensure IDS signatures are up to date.\n")
	}
	b.WriteString(fallbackFooter)
	return b.String()
}

// fallbackRemediation lists remediation steps without a model.
func fallbackRemediation(a models.Alert) string {
	src, dst := orUnknown(a.SourceIP), orUnknown(a.DestIP)

	steps := []string{fmt.Sprintf("Block traffic from **%s** at the perimeter firewall.", src)}
	switch classify(a) {
	case threatPortScan:
		steps = append(steps,
			fmt.Sprintf("Close or filter every port on **%s** that does not need to be reachable.", dst),
			"Enable scan detection and automatic blocking on the IPS.")
	case threatDoS:
		steps = append(steps,
			fmt.Sprintf("Apply connection rate limits in front of **%s**.", dst),
			"Enable SYN cookies and review upstream filtering with the ISP.")
	case threatSQLInjection:
		steps = append(steps,
			"Deploy a WAF rule for the offending request pattern.",
			"Switch the affected queries to parameterized statements.",
			"Audit database logs for successful injected queries.")
	case threatSSH:
		steps = append(steps,
			"Disable password authentication and require SSH keys.",
			"Install fail2ban or an equivalent to throttle repeated failures.",
			fmt.Sprintf("Review /var/log/auth.log on **%s** for successful logins.", dst))
	default:
		steps = append(steps,
			fmt.Sprintf("Quarantine **%s** until the traffic is understood.", dst),
			"Capture and inspect the full packet payload.")
	}
	steps = append(steps,
		"Update IDS signatures and rerun detection.",
		"Document the incident and monitor for recurrence.")

	var b strings.Builder
	b.WriteString("### Remediation Steps\n\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString(fallbackFooter)
	return b.String()
}

// fallbackSummary summarizes a period from its statistics alone.
func fallbackSummary(s models.Statistics, start, end time.Time) string {
	var b strings.Builder
	b.WriteString("### Executive Summary\n\n")
	fmt.Fprintf(&b, "%d alerts were recorded between %s and %s: %d critical, %d high, %d medium and %d low.\n\n",
		s.TotalAlerts, start.UTC().Format(displayLayout), end.UTC().Format(displayLayout),
		s.CriticalAlerts, s.HighAlerts, s.MediumAlerts, s.LowAlerts)

	b.WriteString("### Top Security Concerns\n")
	sigs := stats.TopN(s.TopSignatures, 3)
	if len(sigs) == 0 {
		b.WriteString("* None\n")
	}
	for _, c := range sigs {
		fmt.Fprintf(&b, "* **%s**: %d alerts\n", orUnknown(c.Key), c.Count)
	}

	fmt.Fprintf(&b, "\n### Most Active Sources\n%s\n", joinCounts(stats.TopN(s.TopSourceIPs, 5), " alerts"))

	b.WriteString("\n### Strategic Recommendations\n")
	if s.CriticalAlerts > 0 {
		b.WriteString("1. Triage the critical alerts first and block their sources.\n")
	} else {
		b.WriteString("1. No critical alerts; keep reviewing medium severity activity.\n")
	}
	b.WriteString("2. Keep IDS signatures current and review exposed services.\n")
	b.WriteString(fallbackFooter)
	return b.String()
}
