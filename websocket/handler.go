package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"beatspace/config"
	"beatspace/middleware"
	"beatspace/models"
	"beatspace/utils"
)

// Close codes sent when the connection fails authentication.
const (
	CloseTokenMissing = 4001
	CloseTokenExpired = 4002
	CloseTokenInvalid = 4003
	CloseUnknownUser  = 4004
	CloseIDMismatch   = 4005
	CloseAuthFailed   = 4006
)

const (
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxInboundMessage  = 4096
	closeWriteDeadline = time.Second
	defaultWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub   *Hub
	users middleware.UserLookup
}

func NewHandler(hub *Hub, users middleware.UserLookup) *Handler {
	return &Handler{hub: hub, users: users}
}

// ServeHTTP upgrades /ws/{user_id}?token=... and authenticates over the open
// socket so failures can be reported with close codes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "event", "ws_upgrade_failed", "module", "websocket", "error", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		closeWith(conn, CloseTokenMissing, "token missing")
		return
	}

	principal, err := middleware.ResolvePrincipal(r.Context(), h.users, token)
	if err != nil {
		code, reason := authCloseCode(err)
		closeWith(conn, code, reason)
		return
	}

	channelID, ok := channelFor(principal, mux.Vars(r)["user_id"])
	if !ok {
		closeWith(conn, CloseIDMismatch, "user id mismatch")
		return
	}

	client := newClient(channelID, principal.Role, conn)
	h.hub.Register(client)
	h.hub.send(client, NewEvent(EventConnectionStatus, map[string]interface{}{
		"status":  "connected",
		"user_id": channelID,
		"role":    principal.Role,
		"message": "Connected to BeatSpace real-time updates",
	}))

	go h.writePump(client)
	h.readPump(client)
}

func authCloseCode(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return CloseTokenExpired, "token expired"
	case errors.Is(err, utils.ErrTokenInvalid):
		return CloseTokenInvalid, "token invalid"
	case errors.Is(err, middleware.ErrUnknownUser):
		return CloseUnknownUser, "user not found"
	default:
		return CloseAuthFailed, "authentication failed"
	}
}

// channelFor maps the requested user id onto the principal's channel. Admins
// may also use AdminChannel; everyone else must address their own email.
func channelFor(p models.Principal, requested string) (string, bool) {
	if requested == AdminChannel {
		return AdminChannel, p.IsAdmin()
	}
	if strings.EqualFold(requested, p.Email) {
		return p.Email, true
	}
	return "", false
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteDeadline)); err != nil {
		slog.Debug("websocket close write failed", "module", "websocket", "error", err)
	}
	slog.Info("websocket rejected", "event", "ws_rejected", "module", "websocket", "code", code, "reason", reason)
	conn.Close()
}

// writeWait bounds a single push; a client that cannot take it in time is dropped.
func writeWait() time.Duration {
	if config.WSWriteTimeout > 0 {
		return config.WSWriteTimeout
	}
	return defaultWriteWait
}

type inbound struct {
	Type string `json:"type"`
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read failed", "module", "websocket", "channel", c.channelID, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			if strings.TrimSpace(string(message)) == "ping" {
				msg.Type = "ping"
			} else {
				continue
			}
		}
		if msg.Type == "ping" {
			h.hub.send(c, NewEvent(EventPong, nil))
		}
	}
}

func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait()))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("websocket write failed", "event", "ws_write_failed", "module", "websocket", "channel", c.channelID, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
