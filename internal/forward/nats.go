package forward

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/AzizK97/VarGuard/internal/models"
)

// NATSConfig configures the JetStream forwarder.
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// NATS publishes alerts to a JetStream stream, one subject per severity.
type NATS struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// NewNATS connects to the server and makes sure the stream exists.
func NewNATS(ctx context.Context, cfg NATSConfig) (*NATS, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("varguard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		slog.Warn("failed to create alert stream (may already exist)", "stream", cfg.Stream, "error", err)
	}

	return &NATS{nc: nc, js: js, prefix: cfg.SubjectPrefix}, nil
}

// Subject returns the subject an alert of severity sev is published on.
func Subject(prefix string, sev models.Severity) string {
	return prefix + "." + strings.ToLower(string(sev))
}

func (n *NATS) Name() string { return "nats" }

// Forward publishes a as JSON. The alert id is the JetStream message id, so a
// redelivered alert is deduplicated by the server.
func (n *NATS) Forward(ctx context.Context, a models.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	subject := Subject(n.prefix, a.Severity)
	if _, err := n.js.Publish(ctx, subject, data, jetstream.WithMsgID(strconv.FormatUint(a.ID, 10))); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	slog.Debug("published alert", "subject", subject, "alert_id", a.ID)
	return nil
}

func (n *NATS) Close() error {
	n.nc.Close()
	return nil
}
