package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/relay"
)

// WSHandler upgrades client connections and hands them to the relay.
type WSHandler struct {
	relay    *relay.Relay
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWSHandler creates the WebSocket handler. Origin checks follow the
// configured CORS origins; an empty list admits same-origin clients
// only. Browsers send Origin on every handshake, so the same-origin
// case compares the Origin host against the request host rather than
// requiring the header to be absent.
func NewWSHandler(r *relay.Relay, cfg *config.Config, log zerolog.Logger) *WSHandler {
	allowed := make(map[string]bool, len(cfg.CORSOrigins))
	wildcard := false
	for _, o := range cfg.CORSOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		}
		if o != "" {
			allowed[o] = true
		}
	}

	return &WSHandler{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if wildcard || allowed[origin] {
					return true
				}
				if len(allowed) == 0 {
					return sameOrigin(origin, r.Host)
				}
				return false
			},
		},
		log: log.With().Str("component", "ws-handler").Logger(),
	}
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// Connect upgrades the request and runs the session to completion. The
// session token arrives as the `token` query parameter; the relay owns
// its validation and the resulting close code.
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.relay.Serve(c.Request.Context(), conn, c.Query("token"))
}
