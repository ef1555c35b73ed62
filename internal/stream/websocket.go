package stream

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/AzizK97/VarGuard/internal/models"
)

const defaultWriteWait = 10 * time.Second

// wsFrame is the JSON message sent for alerts and notices.
type wsFrame struct {
	Type    string        `json:"type"`
	Alert   *models.Alert `json:"alert,omitempty"`
	Message string        `json:"message,omitempty"`
}

// WSSink writes events to a websocket connection as JSON text frames.
// Keepalives are sent as ping control frames.
type WSSink struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

// NewWSSink returns a sink for conn. The caller keeps reading from conn so that
// control frames and closes are processed.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn, writeWait: defaultWriteWait}
}

// WriteEvent writes one frame with a write deadline.
func (s *WSSink) WriteEvent(ev Event) error {
	deadline := time.Now().Add(s.writeWait)
	switch ev.Kind {
	case KindKeepalive:
		return s.conn.WriteControl(websocket.PingMessage, nil, deadline)
	case KindAlert:
		a := ev.Alert
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return s.conn.WriteJSON(wsFrame{Type: KindAlert.String(), Alert: &a})
	default:
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return s.conn.WriteJSON(wsFrame{Type: ev.Kind.String(), Message: ev.Notice})
	}
}
