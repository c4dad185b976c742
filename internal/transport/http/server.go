package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// NewServer builds the admin HTTP server: health, session listing and the
// WebSocket gateway into the line protocol.
func NewServer(hub *core.Hub, lines *tcp.Server, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(hub, lines, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket gateway on a plain mux and hands every
// other path to the gin router. The gateway hijacks the connection itself,
// which gin's response writer refuses once the upgrade status is written.
func NewHandler(hub *core.Hub, lines *tcp.Server, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(lines, logger))
	mux.Handle("/", NewRouter(hub, lines, logger))
	return mux
}

// NewRouter registers the admin API routes on a fresh gin engine.
func NewRouter(hub *core.Hub, lines *tcp.Server, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(hub, lines, logger)
	router.GET("/health", api.Health)
	router.GET("/api/sessions", api.ListSessions)

	return router
}
