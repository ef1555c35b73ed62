package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/AzizK97/VarGuard/internal/models"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tp, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, tp.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

var scanAlert = models.Alert{
	ID:         42,
	Timestamp:  "2024-01-01T00:00:00Z",
	At:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	SourceIP:   "203.0.113.7",
	DestIP:     "10.0.0.2",
	SourcePort: 5555,
	DestPort:   22,
	Protocol:   "TCP",
	Signature:  "ET SCAN Nmap Scripting Engine User-Agent Detected",
	Category:   "Attempted Information Leak",
	Severity:   models.SeverityMedium,
}

func TestAnalyzeUsesModel(t *testing.T) {
	m := &fakeModel{reply: "  model says hi \n"}
	a := New(m, Options{})

	if !a.Available() {
		t.Fatal("assistant with a model should be available")
	}
	if got := a.Analyze(context.Background(), scanAlert); got != "model says hi" {
		t.Errorf("Analyze = %q", got)
	}
	if len(m.prompts) != 1 {
		t.Fatalf("model called %d times", len(m.prompts))
	}
	for _, want := range []string{
		"Source IP: 203.0.113.7 (Port: 5555)",
		"Signature: ET SCAN Nmap",
		"Signature ID: N/A",
		"Timestamp: 2024-01-01 00:00:00",
	} {
		if !strings.Contains(m.prompts[0], want) {
			t.Errorf("prompt missing %q:\n%s", want, m.prompts[0])
		}
	}
}

func TestAnalyzeFallsBackOnModelError(t *testing.T) {
	a := New(&fakeModel{err: errors.New("quota exceeded")}, Options{})
	got := a.Analyze(context.Background(), scanAlert)
	if !strings.Contains(got, "Port Scanning") || !strings.Contains(got, "Fallback Mode") {
		t.Errorf("expected port scan fallback, got:\n%s", got)
	}
}

func TestAnalyzeWithoutModel(t *testing.T) {
	a := New(nil, Options{})
	if a.Available() {
		t.Fatal("assistant without a model should not be available")
	}

	tests := []struct {
		signature string
		want      string
	}{
		{"ET DOS Possible SYN Flood", "Denial of Service"},
		{"ET WEB_SERVER Possible SQL Injection Attempt UNION SELECT", "SQL Injection"},
		{"ET SCAN Potential SSH Scan OUTBOUND", "Port Scanning"},
		{"ET POLICY SSH brute force attempt", "SSH Brute-Force"},
		{"GPL ICMP_INFO PING", "Anomalous Network Activity"},
	}
	for _, tt := range tests {
		alert := scanAlert
		alert.Signature = tt.signature
		alert.Category = ""
		got := a.Analyze(context.Background(), alert)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Analyze(%q) missing %q", tt.signature, tt.want)
		}
	}
}

func TestRemediate(t *testing.T) {
	a := New(nil, Options{})
	got := a.Remediate(context.Background(), scanAlert)
	if !strings.Contains(got, "1. Block traffic from **203.0.113.7**") {
		t.Errorf("Remediate:\n%s", got)
	}

	m := &fakeModel{reply: "1. do things"}
	if got := New(m, Options{}).Remediate(context.Background(), scanAlert); got != "1. do things" {
		t.Errorf("Remediate with model = %q", got)
	}
	if !strings.Contains(m.prompts[0], "remediation steps") {
		t.Errorf("unexpected prompt:\n%s", m.prompts[0])
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	a := New(nil, Options{})
	if got := a.Summarize(context.Background(), nil, start, end); got != "No security alerts found in the specified time period." {
		t.Errorf("empty Summarize = %q", got)
	}

	alerts := []models.Alert{scanAlert, scanAlert}
	alerts[1].Severity = models.SeverityCritical
	got := a.Summarize(context.Background(), alerts, start, end)
	for _, want := range []string{"2 alerts", "1 critical", "203.0.113.7 (2 alerts)"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}

	m := &fakeModel{reply: "summary"}
	New(m, Options{}).Summarize(context.Background(), alerts, start, end)
	if len(m.prompts) != 1 || !strings.Contains(m.prompts[0], "Total Alerts: 2") || !strings.Contains(m.prompts[0], "- Critical: 1") {
		t.Errorf("summary prompt:\n%v", m.prompts)
	}
}
