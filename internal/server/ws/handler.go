package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests into hub-managed websocket sessions.
type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewHandler builds the websocket endpoint. Cross-origin upgrades are allowed
// only from the configured frontend origin.
func NewHandler(hub *Hub, dispatcher *Dispatcher, allowedOrigin string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		logger: logger,
	}
}

// Serve handles GET /ws.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(uuid.NewString(), h.hub, h.dispatcher, conn, h.logger)
	h.hub.Register(client)

	go client.writePump()
	// The request context dies when this handler returns; the hijacked
	// connection outlives it, so dispatch runs against the background context.
	go client.readPump(context.Background())
}
