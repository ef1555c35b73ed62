package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tmc/langchaingo/llms"

	"github.com/AzizK97/VarGuard/internal/analysis"
	"github.com/AzizK97/VarGuard/internal/config"
	"github.com/AzizK97/VarGuard/internal/eve"
	"github.com/AzizK97/VarGuard/internal/exporter"
	"github.com/AzizK97/VarGuard/internal/forward"
	"github.com/AzizK97/VarGuard/internal/history"
	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/scan"
	"github.com/AzizK97/VarGuard/internal/server"
	"github.com/AzizK97/VarGuard/internal/stream"
	"github.com/AzizK97/VarGuard/internal/tail"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "varguard",
		Short: "Suricata alert dashboard backend",
		Long: `Follows a Suricata EVE log and serves alert history, statistics and a
live alert stream over HTTP, with Prometheus metrics.`,

		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors manually
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	// Setup Viper for automatic env binding
	viper.SetEnvPrefix("VARGUARD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	setDefaults()

	persistent := cmd.PersistentFlags()
	persistent.String("eve-path", "/var/log/suricata/eve.json", "Path of the Suricata EVE log")
	persistent.String("log-level", "info", "Log level (debug, info, warn, error)")
	persistent.String("log-format", "text", "Log format (text, json)")

	flags := cmd.Flags()
	flags.Duration("poll-interval", time.Second, "Interval between EVE log size checks")
	flags.String("resync", "start", "Where to resume after truncation or rotation (start, end)")
	flags.String("listen-address", ":8080", "Address to listen on for the API and metrics")
	flags.String("metrics-path", "/metrics", "Path under which to expose metrics")
	flags.String("instance-name", "varguard", "Instance name to use in metrics labels")
	flags.String("nats-url", "", "NATS server URL; enables the JetStream forwarder")
	flags.String("hec-endpoint", "", "Splunk HEC endpoint; enables the HEC forwarder")
	flags.String("hec-token", "", "Splunk HEC token")
	flags.Bool("ai-enabled", false, "Use a language model for alert analysis")
	flags.String("ai-model", "", "Language model name")

	// Bind flags to viper
	bindings := map[string]string{
		"eve.path":               "eve-path",
		"log_level":              "log-level",
		"log_format":             "log-format",
		"eve.poll_interval":      "poll-interval",
		"eve.resync":             "resync",
		"server.listen_address":  "listen-address",
		"server.metrics_path":    "metrics-path",
		"exporter.instance_name": "instance-name",
		"forward.nats.url":       "nats-url",
		"forward.hec.endpoint":   "hec-endpoint",
		"forward.hec.token":      "hec-token",
		"ai.enabled":             "ai-enabled",
		"ai.model":               "ai-model",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			flag = persistent.Lookup(name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", name, err))
		}
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRecentCmd())

	return cmd
}

// setDefaults registers every config key so that environment variables reach
// viper.Unmarshal.
func setDefaults() {
	viper.SetDefault("eve.path", "/var/log/suricata/eve.json")
	viper.SetDefault("eve.poll_interval", time.Second)
	viper.SetDefault("eve.resync", tail.ResyncStart)
	viper.SetDefault("eve.max_read_bytes", 8<<20)
	viper.SetDefault("eve.notify", true)
	viper.SetDefault("history.default_limit", 50)
	viper.SetDefault("history.max_limit", 1000)
	viper.SetDefault("history.scan_limit", 10000)
	viper.SetDefault("stream.keepalive", stream.DefaultKeepalive)
	viper.SetDefault("stream.buffer", 64)
	viper.SetDefault("server.listen_address", ":8080")
	viper.SetDefault("server.metrics_path", "/metrics")
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("exporter.instance_name", "varguard")
	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.base_url", "")
	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("ai.max_tokens", 500)
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("forward.retry", 2)
	viper.SetDefault("forward.nats.url", "")
	viper.SetDefault("forward.nats.stream", "IDS_ALERTS")
	viper.SetDefault("forward.nats.subject_prefix", "ids.alert")
	viper.SetDefault("forward.hec.endpoint", "")
	viper.SetDefault("forward.hec.token", "")
	viper.SetDefault("forward.hec.index", "main")
	viper.SetDefault("forward.hec.source", "varguard")
	viper.SetDefault("forward.hec.sourcetype", "suricata:alert")
	viper.SetDefault("forward.hec.tls_skip_verify", false)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("varguard %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built: %s\n", date)
		},
	}
}

func newRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent alerts of the EVE log as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			alerts, err := history.NewReader(cfg.EVE.Path, eve.NewDecoder(), cfg.History.ScanLimit).Read(limit)
			if err != nil {
				return fmt.Errorf("failed to read alerts: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(alerts)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of alerts to print")
	return cmd
}

// loadConfig decodes and validates the configuration and installs the default
// logger writing to logOut.
func loadConfig(logOut io.Writer) (*config.Config, error) {
	// Load config from flags and env vars
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Set up structured logging with slog
	opts := &slog.HandlerOptions{Level: cfg.GetLogLevel()}
	var handler slog.Handler = slog.NewTextHandler(logOut, opts)
	if cfg.JSONLogs() {
		handler = slog.NewJSONHandler(logOut, opts)
	}
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}

func runServer() error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}

	decoder := eve.NewDecoder()
	reader := history.NewReader(cfg.EVE.Path, decoder, cfg.History.ScanLimit)

	// Core instruments and the scrape-time alert statistics
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if _, err := exporter.New(cfg, reader, prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	hub := stream.NewHub(stream.Options{Buffer: cfg.Stream.Buffer, Keepalive: cfg.Stream.Keepalive})
	watcher := tail.New(cfg.EVE.Path, decoder, tail.Options{
		Interval: cfg.EVE.PollInterval,
		MaxRead:  cfg.EVE.MaxReadBytes,
		Resync:   cfg.EVE.Resync,
		Notify:   cfg.EVE.Notify,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx, hub.Publish); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("EVE watcher stopped", "error", err)
		}
	}()

	forwarders, err := newForwarders(ctx, cfg)
	if err != nil {
		return err
	}
	if len(forwarders) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := forward.Run(ctx, hub, forwarders, cfg.Forward.Retry); err != nil {
				slog.Warn("Closing forwarders failed", "error", err)
			}
		}()
	}

	srv := server.New(cfg, server.Deps{
		History:   reader,
		Hub:       hub,
		Assistant: analysis.New(newModel(cfg), analysis.Options{
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}),
		Scans:    scan.NewStore(),
		Gatherer: prometheus.DefaultGatherer,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting VarGuard", "address", cfg.Server.ListenAddress, "eve_path", cfg.EVE.Path)
		slog.Info("Metrics available", "path", cfg.Server.MetricsPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		cancel()
		hub.Close()
		wg.Wait()
		return fmt.Errorf("server failed to start: %w", err)
	}
	slog.Info("Shutting down server...")

	// Stream handlers only return once their subscriptions end
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	wg.Wait()

	slog.Info("Server exited")
	return nil
}

func newForwarders(ctx context.Context, cfg *config.Config) ([]forward.Forwarder, error) {
	var forwarders []forward.Forwarder
	if cfg.Forward.NATS.URL != "" {
		n, err := forward.NewNATS(ctx, forward.NATSConfig{
			URL:           cfg.Forward.NATS.URL,
			Stream:        cfg.Forward.NATS.Stream,
			SubjectPrefix: cfg.Forward.NATS.SubjectPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS forwarder: %w", err)
		}
		forwarders = append(forwarders, n)
	}
	if cfg.Forward.HEC.Endpoint != "" {
		h := forward.NewHEC(forward.HECConfig{
			Endpoint:      cfg.Forward.HEC.Endpoint,
			Token:         cfg.Forward.HEC.Token,
			Index:         cfg.Forward.HEC.Index,
			Source:        cfg.Forward.HEC.Source,
			SourceType:    cfg.Forward.HEC.SourceType,
			TLSSkipVerify: cfg.Forward.HEC.TLSSkipVerify,
		})
		if !h.Healthy() {
			slog.Warn("Splunk HEC health check failed, forwarding anyway", "endpoint", cfg.Forward.HEC.Endpoint)
		}
		forwarders = append(forwarders, h)
	}
	return forwarders, nil
}

// newModel returns the configured language model, or nil for rule-based analysis.
func newModel(cfg *config.Config) llms.Model {
	if !cfg.AI.Enabled {
		return nil
	}
	model, err := analysis.NewOpenAIModel(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
	if err != nil {
		slog.Warn("AI model unavailable, using rule-based analysis", "error", err)
		return nil
	}
	slog.Info("AI analysis enabled", "model", cfg.AI.Model)
	return model
}
