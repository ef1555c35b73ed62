package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/AzizK97/VarGuard/internal/stream"
)

const fileAbsentNotice = "alert log not found yet, waiting for it to appear"

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin)
		},
	}
}

// logAbsent queues a notice on sub when the alert log does not exist. The
// subscription stays open so alerts flow once the file appears.
func (s *Server) logAbsent(sub *stream.Subscription) {
	if _, err := os.Stat(s.history.Path()); errors.Is(err, fs.ErrNotExist) {
		sub.Notify(fileAbsentNotice)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sub := s.hub.Subscribe(sink)
	s.logAbsent(sub)
	slog.Debug("sse client connected", "id", sub.ID, "remote", r.RemoteAddr)

	err = sub.Serve(r.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("sse client dropped", "id", sub.ID, "error", err)
		return
	}
	slog.Debug("sse client disconnected", "id", sub.ID)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(stream.NewWSSink(conn))
	s.logAbsent(sub)
	slog.Debug("websocket client connected", "id", sub.ID, "remote", r.RemoteAddr)

	// Reads process pongs and close frames; the first error means the client is gone.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unsubscribe(sub.ID)
				return
			}
		}
	}()

	if err := sub.Serve(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("websocket client dropped", "id", sub.ID, "error", err)
		return
	}
	slog.Debug("websocket client disconnected", "id", sub.ID)
}
