package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{EVE: EVEConfig{Path: "/var/log/suricata/eve.json"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.EVE.PollInterval != time.Second || cfg.EVE.Resync != "start" || cfg.EVE.MaxReadBytes != 8<<20 {
		t.Errorf("eve defaults = %+v", cfg.EVE)
	}
	if cfg.History.DefaultLimit != 50 || cfg.History.MaxLimit != 1000 || cfg.History.ScanLimit != 10000 {
		t.Errorf("history defaults = %+v", cfg.History)
	}
	if cfg.Stream.Buffer != 64 {
		t.Errorf("stream.buffer = %d", cfg.Stream.Buffer)
	}
	if cfg.Server.ListenAddress != ":8080" || cfg.Server.MetricsPath != "/metrics" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Exporter.InstanceName != "varguard" {
		t.Errorf("instance name = %q", cfg.Exporter.InstanceName)
	}
	if cfg.Forward.NATS.Stream != "IDS_ALERTS" || cfg.Forward.NATS.SubjectPrefix != "ids.alert" {
		t.Errorf("nats defaults = %+v", cfg.Forward.NATS)
	}
	if cfg.Forward.HEC.SourceType != "suricata:alert" || cfg.Forward.HEC.Index != "main" {
		t.Errorf("hec defaults = %+v", cfg.Forward.HEC)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		EVE:       EVEConfig{Resync: "middle"},
		AI:        AIConfig{Enabled: true},
		Forward:   ForwardConfig{HEC: HECConfig{Endpoint: "https://splunk:8088"}},
		LogLevel:  "verbose",
		LogFormat: "xml",
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	if !strings.HasPrefix(msg, "validation errors:\n  - ") {
		t.Errorf("unexpected format: %q", msg)
	}
	for _, want := range []string{
		"eve.path is required",
		"eve.resync must be one of: start, end",
		"ai.api_key is required",
		"forward.hec.token is required",
		"log_level must be one of",
		"log_format must be one of",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateResyncCaseInsensitive(t *testing.T) {
	cfg := &Config{EVE: EVEConfig{Path: "eve.json", Resync: "END"}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.EVE.Resync != "end" {
		t.Errorf("resync = %q, want end", cfg.EVE.Resync)
	}
}

func TestGetLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		if got := cfg.GetLogLevel(); got != want {
			t.Errorf("GetLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
