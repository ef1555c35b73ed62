package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrStreamingUnsupported is returned when a ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("stream: response writer does not support flushing")

// SSESink writes events as Server-Sent Events. Alerts use the event name
// "alert", notices "notice", and keepalives are comment lines.
type SSESink struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSESink sets the event-stream headers on w and returns a sink writing to it.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{w: w, flusher: flusher}, nil
}

// WriteEvent writes one frame and flushes it.
func (s *SSESink) WriteEvent(ev Event) error {
	var err error
	switch ev.Kind {
	case KindAlert:
		var data []byte
		if data, err = json.Marshal(ev.Alert); err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		_, err = fmt.Fprintf(s.w, "event: alert\ndata: %s\n\n", data)
	case KindKeepalive:
		_, err = io.WriteString(s.w, ": keepalive\n\n")
	case KindNotice:
		data, _ := json.Marshal(map[string]string{"message": ev.Notice})
		_, err = fmt.Fprintf(s.w, "event: notice\ndata: %s\n\n", data)
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
