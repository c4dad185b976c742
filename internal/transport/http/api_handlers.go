package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// APIHandlers serves the read-only admin endpoints.
type APIHandlers struct {
	hub   *core.Hub
	lines *tcp.Server
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, lines *tcp.Server, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:   hub,
		lines: lines,
		log:   logger,
	}
}

// SessionsResponse lists who is in the room.
type SessionsResponse struct {
	Count       int      `json:"count"`
	Connections int      `json:"connections"`
	Nicknames   []string `json:"nicknames"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	if h.hub.Closing() {
		c.String(http.StatusServiceUnavailable, "shutting down")
		return
	}
	c.String(http.StatusOK, "ok")
}

// ListSessions returns the registered nicknames.
// GET /api/sessions
func (h *APIHandlers) ListSessions(c *gin.Context) {
	names := h.hub.Registry().Nicknames()
	c.JSON(http.StatusOK, SessionsResponse{
		Count:       len(names),
		Connections: h.lines.ActiveConnections(),
		Nicknames:   names,
	})
}
