// Package stream fans live alerts out to long-lived client connections.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/models"
)

// Kind identifies the type of an Event.
type Kind int

const (
	KindAlert Kind = iota
	KindKeepalive
	KindNotice
)

func (k Kind) String() string {
	switch k {
	case KindAlert:
		return "alert"
	case KindKeepalive:
		return "keepalive"
	case KindNotice:
		return "notice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one frame delivered to a Sink.
type Event struct {
	Kind   Kind
	Alert  models.Alert
	Notice string
}

// Sink is the output side of one subscription, typically an HTTP response or a
// websocket connection. WriteEvent is only called from the subscription's Serve
// goroutine.
type Sink interface {
	WriteEvent(Event) error
}

// DefaultKeepalive is the keepalive interval used by the server.
const DefaultKeepalive = 15 * time.Second

const defaultBuffer = 64

// Options configures a Hub.
type Options struct {
	// Buffer is the per-subscription queue length. Defaults to 64.
	Buffer int
	// Keepalive is the interval between keepalive frames. Zero disables them.
	Keepalive time.Duration
}

// Hub is the set of live subscriptions. Publish never blocks: an event that does
// not fit in a subscriber's queue is dropped for that subscriber only.
type Hub struct {
	opts Options

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewHub returns an empty Hub.
func NewHub(opts Options) *Hub {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	return &Hub{opts: opts, subs: make(map[string]*Subscription)}
}

// Subscription is one registered sink.
type Subscription struct {
	ID      string
	Created time.Time

	hub   *Hub
	sink  Sink
	queue chan Event
	quit  chan struct{}
	once  sync.Once
}

// Subscribe registers sink and returns its subscription. Nothing is written to
// the sink until Serve is called.
func (h *Hub) Subscribe(sink Sink) *Subscription {
	s := &Subscription{
		ID:      uuid.NewString(),
		Created: time.Now(),
		hub:     h,
		sink:    sink,
		queue:   make(chan Event, h.opts.Buffer),
		quit:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.stop()
		return s
	}
	h.subs[s.ID] = s
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	slog.Debug("stream subscriber added", "id", s.ID, "subscribers", n)
	return s
}

// Unsubscribe removes the subscription with id. Unknown ids are ignored, so it
// is safe to call more than once.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.stop()
	metrics.Subscribers.Set(float64(n))
	slog.Debug("stream subscriber removed", "id", id, "subscribers", n)
}

// Publish queues a for every subscription.
func (h *Hub) Publish(a models.Alert) {
	metrics.EventsPublished.Inc()
	h.broadcast(Event{Kind: KindAlert, Alert: a})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.offer(ev) {
			metrics.EventsDropped.Inc()
			slog.Debug("stream subscriber queue full, event dropped", "id", s.ID, "kind", ev.Kind)
		}
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions end immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	metrics.Subscribers.Set(0)
}

// Notify queues a one-time advisory message for this subscription only.
func (s *Subscription) Notify(message string) {
	if !s.offer(Event{Kind: KindNotice, Notice: message}) {
		metrics.EventsDropped.Inc()
	}
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.quit
}

// Serve writes queued events and keepalive frames to the sink until ctx is done,
// the subscription is unsubscribed, or a write fails. The subscription is
// removed from the hub when Serve returns. It returns nil when unsubscribed.
func (s *Subscription) Serve(ctx context.Context) error {
	defer s.hub.Unsubscribe(s.ID)

	var keepalive <-chan time.Time
	if ka := s.hub.opts.Keepalive; ka > 0 {
		t := time.NewTicker(ka)
		defer t.Stop()
		keepalive = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return nil
		case ev := <-s.queue:
			if err := s.write(ev); err != nil {
				return err
			}
		case <-keepalive:
			if err := s.write(Event{Kind: KindKeepalive}); err != nil {
				return err
			}
		}
	}
}

func (s *Subscription) write(ev Event) error {
	select {
	case <-s.quit:
		return nil
	default:
	}
	if err := s.sink.WriteEvent(ev); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Kind, err)
	}
	return nil
}

func (s *Subscription) offer(ev Event) bool {
	select {
	case <-s.quit:
		return true
	default:
	}
	select {
	case s.queue <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.quit) })
}
