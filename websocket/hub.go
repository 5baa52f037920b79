package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"beatspace/models"
)

const sendBuffer = 64

type Client struct {
	channelID string
	role      models.Role
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newClient(channelID string, role models.Role, conn *websocket.Conn) *Client {
	return &Client{channelID: channelID, role: role, conn: conn, send: make(chan []byte, sendBuffer)}
}

// Hub owns the live push channels, keyed by channel id (an email or AdminChannel).
// Every send to or close of a client's queue happens under mu.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]bool)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.channelID]; !ok {
		h.clients[c.channelID] = make(map[*Client]bool)
	}
	h.clients[c.channelID][c] = true
	slog.Info("websocket connected", "event", "ws_connected", "module", "websocket", "channel", c.channelID, "role", c.role)
}

// Unregister removes c from the active set. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.clients[c.channelID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.clients, c.channelID)
	}
	c.closeOnce.Do(func() { close(c.send) })
	slog.Info("websocket disconnected", "event", "ws_disconnected", "module", "websocket", "channel", c.channelID)
}

// deliverLocked queues data without blocking; a full queue marks the
// client dead and reaps it.
func (h *Hub) deliverLocked(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("websocket client too slow, dropping", "event", "ws_reaped", "module", "websocket", "channel", c.channelID)
		h.removeLocked(c)
		return false
	}
}

func (h *Hub) send(c *Client, ev Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode event failed", "event", "ws_encode_failed", "module", "websocket", "type", ev.Type, "error", err)
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c.channelID][c] {
		return false
	}
	return h.deliverLocked(c, data)
}

// SendToPrincipal delivers ev to every live channel of id and returns the
// number of channels it was queued on.
func (h *Hub) SendToPrincipal(id string, ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode event failed", "event", "ws_encode_failed", "module", "websocket", "type", ev.Type, "error", err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.clients[id] {
		if h.deliverLocked(c, data) {
			delivered++
		}
	}
	return delivered
}

// SendToAdmins delivers ev to every channel opened by an admin principal.
func (h *Hub) SendToAdmins(ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode event failed", "event", "ws_encode_failed", "module", "websocket", "type", ev.Type, "error", err)
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, clients := range h.clients {
		for c := range clients {
			if c.role != models.RoleAdmin {
				continue
			}
			if h.deliverLocked(c, data) {
				delivered++
			}
		}
	}
	return delivered
}

func (h *Hub) Connected(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[id]) > 0
}

// Count returns the number of live channels.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, clients := range h.clients {
		n += len(clients)
	}
	return n
}
