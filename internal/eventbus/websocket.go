package eventbus

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kandev/orchestrator/internal/logging"
)

// WSHub fans LiveActivityChannel events out to every connected WebSocket
// client. It is wire plumbing only: no dashboard UI is built in this core
// (per spec Non-goals), but a future consumer process can dial Handler and
// receive every ActivityEvent as JSON frames.
type WSHub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan ActivityEvent
}

// NewWSHub constructs a hub and starts forwarding inner's Activity channel
// to every registered client. The hub runs until inner's Activity channel is
// closed (i.e. until the wrapped Bus is Closed).
func NewWSHub(inner Bus, log *logging.Logger) *WSHub {
	if log == nil {
		log = logging.Default()
	}
	h := &WSHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		logger:  log.WithFields(zap.String("component", "eventbus.wshub")),
		clients: make(map[*wsClient]bool),
	}
	go h.forward(inner)
	return h
}

func (h *WSHub) forward(inner Bus) {
	for ev := range inner.Activity() {
		h.broadcast(ev)
	}
}

func (h *WSHub) broadcast(ev ActivityEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.logger.Warn("dropping activity event for slow websocket client")
		}
	}
}

// Handler upgrades an HTTP connection to a WebSocket and streams every
// subsequent ActivityEvent to it as a JSON frame, until the client
// disconnects.
func (h *WSHub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn, send: make(chan ActivityEvent, 64)}
	h.register(client)
	defer h.unregister(client)

	for ev := range client.send {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func (h *WSHub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	_ = c.conn.Close()
}
