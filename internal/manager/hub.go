package manager

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddeven-league/tournament-system/internal/logging"
)

// Hub mirrors every league broadcast onto any connected dashboard
// websocket client, a read-only live view alongside the league.v2
// agent protocol. It never blocks the agent broadcast path: a slow or
// dead client is dropped rather than backpressuring match reports.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewHub(logger *logging.Logger, allowedOrigins map[string]bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				return allowedOrigins[r.Header.Get("Origin")]
			},
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// ServeWS upgrades the connection and registers it as a broadcast
// recipient until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnEvent("ws_upgrade_failed", "error", err.Error())
		return
	}

	out := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[conn] = out
	h.mu.Unlock()

	go h.writePump(conn, out)
	go h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer h.remove(conn)
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, out chan []byte) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
}

// Broadcast encodes one event and fans it out to every connected
// dashboard client without blocking the caller on a slow reader.
func (h *Hub) Broadcast(event string, data interface{}) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			close(ch)
			delete(h.clients, conn)
		}
	}
}
