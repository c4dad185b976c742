package http

import (
	"context"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// WSHandler upgrades HTTP connections and runs the line protocol over
// WebSocket text frames, sharing the room with TCP clients.
type WSHandler struct {
	lines *tcp.Server
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(lines *tcp.Server, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{lines: lines, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	// The session closes the connection when the line protocol ends.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws session started")
	h.lines.ServeConn(websocket.NetConn(ctx, conn, websocket.MessageText))
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws session finished")
}
