package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

// StatusHandler exposes the public runtime configuration, including the
// backend disclosure required before a conversation starts.
type StatusHandler struct {
	cfg  *config.Config
	prov provider.LiveProvider
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(cfg *config.Config, prov provider.LiveProvider) *StatusHandler {
	return &StatusHandler{cfg: cfg, prov: prov}
}

// Status returns the deployment mode and public session parameters.
func (h *StatusHandler) Status(c *gin.Context) {
	mode := "simple"
	if h.cfg.RedisURL != "" {
		mode = "production"
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":               mode,
		"session_time_limit": int(h.cfg.SessionTimeLimit.Seconds()),
		"daily_user_limit":   int(h.cfg.DailyUserLimit.Seconds()),
		"password_required":  h.cfg.AccessPassword != "",
		"provider":           provider.InfoFor(h.prov),
	})
}
