package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	EVE       EVEConfig      `mapstructure:"eve"`
	History   HistoryConfig  `mapstructure:"history"`
	Stream    StreamConfig   `mapstructure:"stream"`
	Server    ServerConfig   `mapstructure:"server"`
	Exporter  ExporterConfig `mapstructure:"exporter"`
	AI        AIConfig       `mapstructure:"ai"`
	Forward   ForwardConfig  `mapstructure:"forward"`
	LogLevel  string         `mapstructure:"log_level"`
	LogFormat string         `mapstructure:"log_format"`
}

// EVEConfig describes the Suricata EVE log being followed
type EVEConfig struct {
	Path         string        `mapstructure:"path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Resync       string        `mapstructure:"resync"`
	MaxReadBytes int64         `mapstructure:"max_read_bytes"`
	Notify       bool          `mapstructure:"notify"`
}

// HistoryConfig bounds history reads
type HistoryConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
	ScanLimit    int `mapstructure:"scan_limit"`
}

// StreamConfig configures live alert subscriptions
type StreamConfig struct {
	Keepalive time.Duration `mapstructure:"keepalive"`
	Buffer    int           `mapstructure:"buffer"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	ListenAddress  string   `mapstructure:"listen_address"`
	MetricsPath    string   `mapstructure:"metrics_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ExporterConfig contains exporter-specific configuration
type ExporterConfig struct {
	InstanceName string `mapstructure:"instance_name"`
}

// AIConfig configures the optional language model used for alert analysis
type AIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// ForwardConfig lists the downstream alert forwarders. A forwarder is enabled
// when its address is set.
type ForwardConfig struct {
	Retry int        `mapstructure:"retry"`
	NATS  NATSConfig `mapstructure:"nats"`
	HEC   HECConfig  `mapstructure:"hec"`
}

// NATSConfig configures the JetStream forwarder
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// HECConfig configures the Splunk HTTP Event Collector forwarder
type HECConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	Token         string `mapstructure:"token"`
	Index         string `mapstructure:"index"`
	Source        string `mapstructure:"source"`
	SourceType    string `mapstructure:"sourcetype"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
}

// Validate fills in defaults and validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.EVE.Path == "" {
		errors = append(errors, "eve.path is required")
	}
	if c.EVE.PollInterval <= 0 {
		c.EVE.PollInterval = time.Second
	}
	if c.EVE.MaxReadBytes <= 0 {
		c.EVE.MaxReadBytes = 8 << 20
	}
	c.EVE.Resync = strings.ToLower(c.EVE.Resync)
	if c.EVE.Resync == "" {
		c.EVE.Resync = "start"
	}
	if c.EVE.Resync != "start" && c.EVE.Resync != "end" {
		errors = append(errors, "eve.resync must be one of: start, end")
	}

	if c.History.DefaultLimit <= 0 {
		c.History.DefaultLimit = 50
	}
	if c.History.MaxLimit <= 0 {
		c.History.MaxLimit = 1000
	}
	if c.History.ScanLimit <= 0 {
		c.History.ScanLimit = 10000
	}
	if c.History.DefaultLimit > c.History.MaxLimit {
		errors = append(errors, "history.default_limit must not exceed history.max_limit")
	}

	if c.Stream.Keepalive < 0 {
		errors = append(errors, "stream.keepalive must not be negative")
	}
	if c.Stream.Buffer <= 0 {
		c.Stream.Buffer = 64
	}

	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}

	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		errors = append(errors, "server.metrics_path must start with /")
	}

	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Exporter.InstanceName == "" {
		c.Exporter.InstanceName = "varguard"
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		errors = append(errors, "ai.api_key is required when ai.enabled is set")
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 30 * time.Second
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 500
	}

	if c.Forward.Retry < 0 {
		errors = append(errors, "forward.retry must not be negative")
	}
	if c.Forward.NATS.Stream == "" {
		c.Forward.NATS.Stream = "IDS_ALERTS"
	}
	if c.Forward.NATS.SubjectPrefix == "" {
		c.Forward.NATS.SubjectPrefix = "ids.alert"
	}
	if c.Forward.HEC.Endpoint != "" && c.Forward.HEC.Token == "" {
		errors = append(errors, "forward.hec.token is required when forward.hec.endpoint is set")
	}
	if c.Forward.HEC.Index == "" {
		c.Forward.HEC.Index = "main"
	}
	if c.Forward.HEC.Source == "" {
		c.Forward.HEC.Source = "varguard"
	}
	if c.Forward.HEC.SourceType == "" {
		c.Forward.HEC.SourceType = "suricata:alert"
	}

	// Set default log level if empty
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("log_level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("log_format must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// GetLogLevel returns the slog.Level for the configured log level
func (c *Config) GetLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func (c *Config) IsDebugEnabled() bool {
	return strings.ToLower(c.LogLevel) == "debug"
}

// JSONLogs reports whether logs should be written as JSON
func (c *Config) JSONLogs() bool {
	return strings.ToLower(c.LogFormat) == "json"
}
