package exporter

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AzizK97/VarGuard/internal/config"
	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stats"
)

// Source supplies the alerts reported on each scrape, newest first.
type Source interface {
	Read(limit int) ([]models.Alert, error)
}

// Exporter publishes alert statistics computed from the log at scrape time
type Exporter struct {
	config  *config.Config
	source  Source
	metrics *Metrics
	now     func() time.Time

	mu sync.Mutex
}

// Metrics contains all Prometheus metrics
type Metrics struct {
	AlertsBySeverity *prometheus.GaugeVec
	AlertsInWindow   *prometheus.GaugeVec
	AlertsByCategory *prometheus.GaugeVec
	LastAlert        *prometheus.GaugeVec
	ScrapeErrors     prometheus.Counter
}

// New creates an exporter over source and registers it with reg
func New(cfg *config.Config, source Source, reg prometheus.Registerer) (*Exporter, error) {
	metrics := &Metrics{
		AlertsBySeverity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varguard_alerts",
				Help: "Alerts in the history window by severity",
			},
			[]string{"instance", "severity"},
		),
		AlertsInWindow: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varguard_alerts_recent",
				Help: "Alerts whose timestamp falls in the trailing window",
			},
			[]string{"instance", "window"},
		),
		AlertsByCategory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varguard_alerts_by_category",
				Help: "Alerts in the history window by category",
			},
			[]string{"instance", "category"},
		),
		LastAlert: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "varguard_last_alert_timestamp_seconds",
				Help: "Timestamp of the newest alert in the log",
			},
			[]string{"instance"},
		),
		ScrapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "varguard_exporter_scrape_errors_total",
			Help: "Failed reads of the alert log during a scrape",
		}),
	}

	exporter := &Exporter{
		config:  cfg,
		source:  source,
		metrics: metrics,
		now:     time.Now,
	}

	if err := reg.Register(exporter); err != nil {
		return nil, err
	}

	return exporter, nil
}

// Describe implements prometheus.Collector interface
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	e.metrics.AlertsBySeverity.Describe(ch)
	e.metrics.AlertsInWindow.Describe(ch)
	e.metrics.AlertsByCategory.Describe(ch)
	e.metrics.LastAlert.Describe(ch)
	e.metrics.ScrapeErrors.Describe(ch)
}

// Collect implements prometheus.Collector interface
// This is called every time /metrics is accessed
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config.IsDebugEnabled() {
		slog.Debug("Scraping EVE log for alert statistics", "path", e.config.EVE.Path)
	}

	alerts, err := e.source.Read(e.config.History.ScanLimit)
	if err != nil {
		slog.Error("Error reading alerts", "error", err)
		e.metrics.ScrapeErrors.Inc()
		// Still collect existing metrics even if the read failed
		e.collect(ch)
		return
	}

	e.update(alerts)

	if e.config.IsDebugEnabled() {
		slog.Debug("Updated metrics", "alert_count", len(alerts))
	}

	e.collect(ch)
}

func (e *Exporter) update(alerts []models.Alert) {
	instance := e.config.Exporter.InstanceName
	s := stats.Aggregate(alerts, e.now())

	e.metrics.AlertsBySeverity.Reset()
	for _, sev := range models.Severities {
		e.metrics.AlertsBySeverity.WithLabelValues(instance, string(sev)).Set(float64(s.CountFor(sev)))
	}

	e.metrics.AlertsInWindow.Reset()
	e.metrics.AlertsInWindow.WithLabelValues(instance, "1h").Set(float64(s.AlertsLastHour))
	e.metrics.AlertsInWindow.WithLabelValues(instance, "24h").Set(float64(s.AlertsLast24Hours))
	e.metrics.AlertsInWindow.WithLabelValues(instance, "7d").Set(float64(s.AlertsLast7Days))

	e.metrics.AlertsByCategory.Reset()
	for category, n := range s.AlertsByCategory {
		e.metrics.AlertsByCategory.WithLabelValues(instance, category).Set(float64(n))
	}

	e.metrics.LastAlert.Reset()
	for _, a := range alerts {
		if !a.At.IsZero() {
			e.metrics.LastAlert.WithLabelValues(instance).Set(float64(a.At.UnixMilli()) / 1000)
			break
		}
	}
}

func (e *Exporter) collect(ch chan<- prometheus.Metric) {
	e.metrics.AlertsBySeverity.Collect(ch)
	e.metrics.AlertsInWindow.Collect(ch)
	e.metrics.AlertsByCategory.Collect(ch)
	e.metrics.LastAlert.Collect(ch)
	e.metrics.ScrapeErrors.Collect(ch)
}
