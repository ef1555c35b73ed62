package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AzizK97/VarGuard/internal/metrics"
	"github.com/AzizK97/VarGuard/internal/models"
)

type recordSink struct {
	events chan Event
	fail   error
}

func newRecordSink() *recordSink {
	return &recordSink{events: make(chan Event, 32)}
}

func (s *recordSink) WriteEvent(ev Event) error {
	if s.fail != nil {
		return s.fail
	}
	s.events <- ev
	return nil
}

func (s *recordSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func serve(ctx context.Context, s *Subscription) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	return done
}

func TestPublishFanOut(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := newRecordSink(), newRecordSink()
	serve(ctx, h.Subscribe(a))
	serve(ctx, h.Subscribe(b))
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}

	h.Publish(models.Alert{ID: 1, Signature: "first"})
	h.Publish(models.Alert{ID: 2, Signature: "second"})

	for _, sink := range []*recordSink{a, b} {
		if ev := sink.next(t); ev.Kind != KindAlert || ev.Alert.ID != 1 {
			t.Errorf("first event = %+v", ev)
		}
		if ev := sink.next(t); ev.Alert.ID != 2 {
			t.Errorf("second event = %+v", ev)
		}
	}
}

func TestFailingSinkIsRemoved(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broken := newRecordSink()
	broken.fail = errors.New("connection reset")
	healthy := newRecordSink()

	brokenDone := serve(ctx, h.Subscribe(broken))
	serve(ctx, h.Subscribe(healthy))

	h.Publish(models.Alert{ID: 1})

	select {
	case err := <-brokenDone:
		if err == nil || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("Serve error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broken subscription kept serving")
	}
	eventually(t, func() bool { return h.Len() == 1 })

	healthy.next(t)
	h.Publish(models.Alert{ID: 2})
	if ev := healthy.next(t); ev.Alert.ID != 2 {
		t.Errorf("healthy subscriber got %+v", ev)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(Options{})
	s := h.Subscribe(newRecordSink())

	h.Unsubscribe(s.ID)
	h.Unsubscribe(s.ID)
	h.Unsubscribe("unknown")

	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Unsubscribe")
	}
	if err := s.Serve(context.Background()); err != nil {
		t.Errorf("Serve after Unsubscribe = %v, want nil", err)
	}
}

func TestNoWriteAfterUnsubscribe(t *testing.T) {
	h := NewHub(Options{})
	sink := newRecordSink()
	s := h.Subscribe(sink)

	h.Publish(models.Alert{ID: 1})
	h.Unsubscribe(s.ID)
	if err := s.Serve(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("sink received %d events after unsubscribe", len(sink.events))
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := serve(ctx, h.Subscribe(newRecordSink()))

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestKeepalive(t *testing.T) {
	h := NewHub(Options{Keepalive: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newRecordSink()
	serve(ctx, h.Subscribe(sink))

	if ev := sink.next(t); ev.Kind != KindKeepalive {
		t.Fatalf("got %s, want keepalive", ev.Kind)
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	h := NewHub(Options{Buffer: 1})
	sink := newRecordSink()
	s := h.Subscribe(sink)

	dropped := testutil.ToFloat64(metrics.EventsDropped)
	h.Publish(models.Alert{ID: 1})
	h.Publish(models.Alert{ID: 2})
	h.Publish(models.Alert{ID: 3})
	if got := testutil.ToFloat64(metrics.EventsDropped) - dropped; got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serve(ctx, s)
	if ev := sink.next(t); ev.Alert.ID != 1 {
		t.Errorf("kept event = %+v, want id 1", ev)
	}
}

func TestNotify(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newRecordSink()
	s := h.Subscribe(sink)
	s.Notify("log file not found")
	serve(ctx, s)

	ev := sink.next(t)
	if ev.Kind != KindNotice || ev.Notice != "log file not found" {
		t.Errorf("got %+v", ev)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(Options{})
	done := serve(context.Background(), h.Subscribe(newRecordSink()))

	h.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	late := h.Subscribe(newRecordSink())
	select {
	case <-late.Done():
	default:
		t.Error("subscription after Close should already be done")
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestPublishConcurrentWithUnsubscribe(t *testing.T) {
	h := NewHub(Options{Buffer: 4})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		s := h.Subscribe(newRecordSink())
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Unsubscribe(s.ID)
		}()
	}
	for i := 0; i < 100; i++ {
		h.Publish(models.Alert{ID: uint64(i)})
	}
	wg.Wait()
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestSSESinkFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	if err != nil {
		t.Fatal(err)
	}

	alert := models.Alert{ID: 7, Severity: models.SeverityMedium, Category: "Y", SourceIP: "10.0.0.1"}
	for _, ev := range []Event{
		{Kind: KindAlert, Alert: alert},
		{Kind: KindKeepalive},
		{Kind: KindNotice, Notice: "waiting"},
	} {
		if err := sink.WriteEvent(ev); err != nil {
			t.Fatalf("WriteEvent(%s): %v", ev.Kind, err)
		}
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"event: alert\ndata: {\"id\":7,",
		"\"severity\":\"MEDIUM\"",
		"\n\n: keepalive\n\n",
		"event: notice\ndata: {\"message\":\"waiting\"}\n\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if !rec.Flushed {
		t.Error("frames were not flushed")
	}
}

func TestWSSinkWritesJSON(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		sink := NewWSSink(conn)
		_ = sink.WriteEvent(Event{Kind: KindAlert, Alert: models.Alert{ID: 9, Signature: "X"}})
		_ = sink.WriteEvent(Event{Kind: KindNotice, Notice: "hello"})
		// Wait for the client to hang up.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read alert frame: %v", err)
	}
	if frame.Type != "alert" || frame.Alert == nil || frame.Alert.ID != 9 {
		t.Errorf("alert frame = %+v", frame)
	}

	frame = wsFrame{}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read notice frame: %v", err)
	}
	if frame.Type != "notice" || frame.Message != "hello" {
		t.Errorf("notice frame = %+v", frame)
	}
}
