// Package forward relays live alerts to downstream systems.
package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/models"
	"github.com/AzizK97/VarGuard/internal/stream"
)

// Forwarder delivers single alerts to a downstream system.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, a models.Alert) error
	Close() error
}

const defaultTimeout = 5 * time.Second

// Sink adapts a Forwarder to a stream.Sink. Delivery failures are logged and
// counted but never end the subscription.
type Sink struct {
	ctx     context.Context
	fwd     Forwarder
	retry   int
	timeout time.Duration
}

// NewSink returns a Sink delivering through f, retrying each alert retry times.
func NewSink(ctx context.Context, f Forwarder, retry int) *Sink {
	if retry < 0 {
		retry = 0
	}
	return &Sink{ctx: ctx, fwd: f, retry: retry, timeout: defaultTimeout}
}

// WriteEvent forwards alert events and ignores the rest.
func (s *Sink) WriteEvent(ev stream.Event) error {
	if ev.Kind != stream.KindAlert {
		return nil
	}
	if err := s.deliver(ev.Alert); err != nil {
		metrics.ForwardErrors.WithLabelValues(s.fwd.Name()).Inc()
		slog.Warn("forward alert failed", "forwarder", s.fwd.Name(), "alert_id", ev.Alert.ID, "error", err)
	}
	return nil
}

func (s *Sink) deliver(a models.Alert) error {
	var err error
	for attempts := s.retry; attempts >= 0; attempts-- {
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		err = s.fwd.Forward(ctx, a)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// Run subscribes every forwarder to hub and serves them until ctx is done.
// Forwarders are closed before Run returns.
func Run(ctx context.Context, hub *stream.Hub, forwarders []Forwarder, retry int) error {
	var wg sync.WaitGroup
	for _, f := range forwarders {
		sub := hub.Subscribe(NewSink(ctx, f, retry))
		slog.Info("alert forwarder started", "forwarder", f.Name(), "subscription", sub.ID)

		wg.Add(1)
		go func(f Forwarder, sub *stream.Subscription) {
			defer wg.Done()
			if err := sub.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("alert forwarder stopped", "forwarder", f.Name(), "error", err)
			}
		}(f, sub)
	}
	wg.Wait()

	var errs []error
	for _, f := range forwarders {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.Name(), err))
		}
	}
	return errors.Join(errs...)
}
