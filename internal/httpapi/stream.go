package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stocks-watcher/internal/broadcast"
)

// StreamHandler upgrades /ws connections and attaches them to the hub.
type StreamHandler struct {
	Hub            *broadcast.Hub
	AllowedOrigins []string
	BaseContext    context.Context
	Logger         zerolog.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/ws", h.serve)
}

func (h *StreamHandler) serve(c *gin.Context) {
	if h.Hub == nil {
		writeError(c, http.StatusServiceUnavailable, "broadcast unavailable")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := h.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	broadcast.NewWSConn(conn).Serve(ctx, h.Hub)
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		allowed = strings.TrimRight(strings.TrimSpace(allowed), "/")
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
