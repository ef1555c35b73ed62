package forward

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	splunk "github.com/mosajjal/Go-Splunk-HTTP/splunk/v2"

	"github.com/AzizK97/VarGuard/internal/models"
)

const collectorPath = "/services/collector"

// HECConfig configures the Splunk HTTP Event Collector forwarder.
type HECConfig struct {
	Endpoint      string
	Token         string
	Index         string
	Source        string
	SourceType    string
	TLSSkipVerify bool
	Timeout       time.Duration
}

// HEC sends each alert as one Splunk event.
type HEC struct {
	client *splunk.Client
	host   string
	cfg    HECConfig
}

// NewHEC returns a forwarder for the collector at cfg.Endpoint. The
// "/services/collector" path is appended when missing.
func NewHEC(cfg HECConfig) *HEC {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if !strings.HasSuffix(endpoint, collectorPath) {
		endpoint += collectorPath
	}

	rt := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}}
	httpClient := &http.Client{Timeout: cfg.Timeout, Transport: rt}

	host, err := os.Hostname()
	if err != nil {
		host = "varguard"
	}
	return &HEC{
		client: splunk.NewClient(httpClient, endpoint, cfg.Token, cfg.Source, cfg.SourceType, cfg.Index),
		host:   host,
		cfg:    cfg,
	}
}

func (h *HEC) Name() string { return "hec" }

// Forward sends a as the event body, timestamped with the alert time when it
// could be parsed.
func (h *HEC) Forward(_ context.Context, a models.Alert) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	ev := &splunk.Event{
		Time:       splunk.EventTime{Time: at},
		Host:       h.host,
		Source:     h.cfg.Source,
		SourceType: h.cfg.SourceType,
		Index:      h.cfg.Index,
		Event:      a,
	}
	if err := h.client.LogEvents([]*splunk.Event{ev}); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// Healthy reports whether the collector answers its health check.
func (h *HEC) Healthy() bool {
	return h.client.CheckHealth() == nil
}

func (h *HEC) Close() error { return nil }
