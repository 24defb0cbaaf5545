package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/broadcast"
	"github.com/harlowbrent/boosterdraft/go/internal/draftservice"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler serves the subscription channel spec.md §6 names:
// one event per broadcast.Hub publish for the draft, JSON-encoded.
// Grounded on the teacher's gateway.ConnectionManager/Connection —
// one write-pump goroutine per connection draining its Hub channel.
type WebSocketHandler struct {
	svc *draftservice.Service
	hub *broadcast.Hub
}

// NewWebSocketHandler constructs a WebSocketHandler bound to a running
// Service (to resolve shareId -> internal id) and Hub (to subscribe).
func NewWebSocketHandler(svc *draftservice.Service, hub *broadcast.Hub) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers the WebSocket upgrade route.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /draft/{shareId}/ws", h.handleUpgrade)
}

func (h *WebSocketHandler) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	draftID, err := h.svc.Resolve(r.Context(), r.PathValue("shareId"))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	ch, unsubscribe := h.hub.Subscribe(draftID)
	go h.writePump(conn, ch, unsubscribe)
}

// writePump drains ch and forwards each event as a JSON text frame
// until the channel closes (unsubscribed) or the connection breaks.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, ch chan broadcast.Event, unsubscribe func()) {
	defer unsubscribe()
	defer conn.Close()

	go drainReads(conn)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			body, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal websocket event")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards inbound frames; this connection is send-only from
// the server's perspective, but gorilla/websocket requires reads to
// process control frames (pong/close).
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
