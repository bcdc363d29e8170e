// Package statswatch implements the live-statistics WebSocket push
// adapted from the teacher's wsflv service: instead of streaming FLV
// tags read off a bus.Subscriber, it pushes periodic JSON
// StatsSnapshot frames to anyone watching the admin dashboard.
package statswatch

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"relaycast/internal/statushandler"
)

// SnapshotFunc produces the current statistics snapshot on demand,
// typically backed by the server's registry + relay manager sweep
// that also feeds the statushandler/statshandler registries.
type SnapshotFunc func() statushandler.StatsSnapshot

// Handler upgrades GET /stats/ws requests and pushes a JSON
// StatsSnapshot on every tick until the client disconnects.
type Handler struct {
	snapshot SnapshotFunc
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewHandler creates a statswatch handler pushing snapshots produced
// by snapshot every interval.
func NewHandler(snapshot SnapshotFunc, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Handler{
		snapshot: snapshot,
		interval: interval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the WebSocket upgrade and the push loop.
// Endpoint: GET /stats/ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// A read pump is the only way to notice the client closing the
	// connection or sending a close frame; we never expect inbound
	// data frames, so every read result besides an error is discarded.
	closed := make(chan struct{})
	var once sync.Once
	closeOnce := func() { once.Do(func() { close(closed) }) }
	go func() {
		defer closeOnce()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.writeSnapshot(conn); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := h.writeSnapshot(conn); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeSnapshot(conn *websocket.Conn) error {
	snap := h.snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// RegisterRoutes registers the statswatch route on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stats/ws", h.ServeHTTP)
}
