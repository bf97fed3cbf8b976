package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// StatsHandler pushes every engine heartbeat to WebSocket clients as JSON.
type StatsHandler struct {
	preview *Preview
	logger  *slog.Logger
}

// NewStatsHandler creates a new StatsHandler fed by preview.
func NewStatsHandler(preview *Preview, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{preview: preview, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	stats, unsubscribe := h.preview.Subscribe()
	defer unsubscribe()

	// Keep connection alive by reading messages; a read error means the
	// client is gone.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, h.preview.Stats()); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case st, ok := <-stats:
			if !ok {
				return
			}
			if err := h.send(conn, st); err != nil {
				h.logger.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *StatsHandler) send(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
