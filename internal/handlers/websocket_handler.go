package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fiduciaire/internal/middleware"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/queue"
	"fiduciaire/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 60 * time.Second
	wsPongWait     = 300 * time.Second
)

// wsMessage frame sent to the browser
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketHandler pushes a user's notifications live.
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	queue         *queue.RedisQueue
	auth          *middleware.AuthMiddleware
	notifications *services.NotificationService
	log           *logrus.Logger
}

// NewWebSocketHandler q may be nil, the endpoint then answers 503.
func NewWebSocketHandler(q *queue.RedisQueue, auth *middleware.AuthMiddleware, notifications *services.NotificationService, allowedOrigins []string) *WebSocketHandler {
	log := logger.GetLogger()
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if middleware.OriginAllowed(origin, allowedOrigins) {
					return true
				}
				log.Warnf("WebSocket refused, origin not allowed: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 4,
			WriteBufferSize: 1024 * 32,
		},
		queue:         q,
		auth:          auth,
		notifications: notifications,
		log:           log,
	}
}

// Notifications streams the caller's notifications.
// Browsers cannot set headers on a websocket, the token comes as ?token=.
func (h *WebSocketHandler) Notifications(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "jeton manquant")
		return
	}
	user, _, err := h.auth.Authenticate(token)
	if err != nil {
		response.FromError(c, err, "authentification impossible")
		return
	}
	if h.queue == nil {
		response.Error(c, http.StatusServiceUnavailable, "notifications en direct indisponibles")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	entry := h.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"remote_addr": c.ClientIP(),
	})
	entry.Info("Notification WebSocket connected")
	defer entry.Info("Notification WebSocket closed")

	h.stream(conn, user.ID, entry)
}

func (h *WebSocketHandler) stream(conn *websocket.Conn, userID uint, entry *logrus.Entry) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.queue.SubscribeNotifications(ctx, userID)
	defer pubsub.Close()

	// wait for the subscription before reporting the unread count
	if _, err := pubsub.Receive(ctx); err != nil {
		entry.WithError(err).Error("Failed to subscribe to notification channel")
		return
	}

	go h.readPump(conn, cancel, entry)

	if count, err := h.notifications.UnreadCount(userID); err == nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(wsMessage{Type: "unread_count", Data: gin.H{"count": count}}); err != nil {
			return
		}
	}

	ch := pubsub.Channel()
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				entry.WithError(err).Debug("Failed to send ping")
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !json.Valid([]byte(msg.Payload)) {
				entry.Warn("Dropping malformed notification payload")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsMessage{Type: "notification", Data: json.RawMessage(msg.Payload)}); err != nil {
				entry.WithError(err).Debug("Failed to send notification to client")
				return
			}
		}
	}
}

// readPump only keeps the read deadline alive; clients send nothing useful.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc, entry *logrus.Entry) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				entry.WithError(err).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}
