package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/room-booking/internal/application"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// NotificationHub pushes engine events to the websocket connections of
// their recipients. It implements application.Notifier.
type NotificationHub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewNotificationHub constructs a hub accepting upgrades from the given
// origins. Requests without an Origin header are always accepted.
func NewNotificationHub(allowedOrigins []string, logger *slog.Logger) *NotificationHub {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &NotificationHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger:  defaultLogger(logger),
		clients: make(map[string]map[*hubClient]struct{}),
	}
}

// Publish implements application.Notifier. Slow clients drop events
// rather than block the engine.
func (h *NotificationHub) Publish(ctx context.Context, event application.Event) {
	if h == nil || event.RecipientID == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode event", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.RecipientID] {
		select {
		case client.send <- payload:
		default:
			h.logger.WarnContext(ctx, "dropping event for slow client", "user_id", client.userID, "type", event.Type)
		}
	}
}

// ClientCount reports how many connections a user has open.
func (h *NotificationHub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// ServeWS upgrades the request and streams events until the peer goes away.
func (h *NotificationHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		newResponder(h.logger).writeError(r.Context(), w, http.StatusUnauthorized, errMissingPrincipal)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "NotificationHub", "ServeWS").WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{userID: principal.UserID, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "NotificationHub", "ServeWS", "user_id", principal.UserID)
	logger.DebugContext(r.Context(), "stream opened")

	go h.writePump(client)
	h.readPump(client)

	h.unregister(client)
	logger.DebugContext(r.Context(), "stream closed")
}

// Close disconnects every client.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for userID, set := range h.clients {
		for client := range set {
			client.close()
		}
		delete(h.clients, userID)
	}
}

func (h *NotificationHub) register(client *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[client.userID]
	if !ok {
		set = make(map[*hubClient]struct{})
		h.clients[client.userID] = set
	}
	set[client] = struct{}{}
	return true
}

func (h *NotificationHub) unregister(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, client.userID)
		}
	}
	client.close()
}

// readPump only services control frames; clients have nothing to say.
func (h *NotificationHub) readPump(client *hubClient) {
	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "user_id", client.userID, "error", err)
			}
			return
		}
	}
}

func (h *NotificationHub) writePump(client *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ application.Notifier = (*NotificationHub)(nil)
