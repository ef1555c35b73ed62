// Package metrics holds the prometheus instruments updated by the tailing and
// streaming pipeline.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "varguard"

var (
	// LinesDecoded counts log lines by decode outcome: alert, skipped or error.
	LinesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eve",
			Name:      "lines_decoded_total",
			Help:      "EVE log lines processed by decode result",
		},
		[]string{"result"},
	)

	TailBytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tail",
		Name:      "bytes_read_total",
		Help:      "Bytes read from the watched log by the growth watcher",
	})

	// TailResyncs counts cursor resynchronizations by reason: truncated or rotated.
	TailResyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tail",
			Name:      "resyncs_total",
			Help:      "Cursor resynchronizations after truncation or rotation",
		},
		[]string{"reason"},
	)

	TailCursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tail",
		Name:      "cursor_bytes",
		Help:      "Current tail cursor position in bytes",
	})

	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "subscribers",
		Help:      "Live stream subscriptions",
	})

	EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "alerts_published_total",
		Help:      "Alerts published to the broadcaster",
	})

	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber queue was full",
	})

	ForwardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forward",
			Name:      "errors_total",
			Help:      "Failed alert deliveries per forwarder",
		},
		[]string{"forwarder"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		LinesDecoded,
		TailBytesRead,
		TailResyncs,
		TailCursor,
		Subscribers,
		EventsPublished,
		EventsDropped,
		ForwardErrors,
	}
}

// Register registers every instrument with reg. Instruments already registered
// with reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
