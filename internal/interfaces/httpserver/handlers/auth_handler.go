package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/quota"
	"github.com/lingora-ai/relay-server/internal/domain/token"
	"github.com/lingora-ai/relay-server/internal/infrastructure/metrics"
	"github.com/lingora-ai/relay-server/internal/infrastructure/tracker"
)

// AuthHandler issues single-use session tokens for the WebSocket
// endpoint.
type AuthHandler struct {
	tokens       *token.Store
	quota        *quota.Tracker
	usage        *tracker.Tracker
	password     string
	sessionLimit time.Duration
	log          zerolog.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(tokens *token.Store, qt *quota.Tracker, usage *tracker.Tracker, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		tokens:       tokens,
		quota:        qt,
		usage:        usage,
		password:     cfg.AccessPassword,
		sessionLimit: cfg.SessionTimeLimit,
		log:          log.With().Str("component", "auth-handler").Logger(),
	}
}

type authRequest struct {
	Password string `json:"password"`
	UserID   string `json:"user_id"`
}

type authResponse struct {
	SessionToken     string `json:"session_token"`
	SessionTimeLimit int    `json:"session_time_limit"`
	DailyRemaining   int    `json:"daily_remaining"`
}

// Authenticate validates the access password and the caller's remaining
// daily quota, then mints a short-lived single-use session token.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	if h.password != "" && req.Password != h.password {
		h.log.Warn().Msg("invalid or missing access password")
		c.JSON(http.StatusForbidden, gin.H{"detail": "Invalid access password"})
		return
	}

	ctx := c.Request.Context()
	userID := req.UserID

	// Anonymous callers are not quota-tracked; they get the configured
	// session limit and nothing more.
	remaining := h.sessionLimit
	if userID != "" {
		ok, msg, err := h.quota.CanStart(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("quota check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"detail": msg})
			return
		}
		remaining, err = h.quota.Remaining(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("quota lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
	}

	effective := h.sessionLimit
	if remaining < effective {
		effective = remaining
	}

	tok, err := h.tokens.Mint(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("token mint failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	metrics.TokensMinted.Inc()
	h.usage.Track("auth", map[string]string{"anonymous": boolString(userID == "")})

	c.JSON(http.StatusOK, authResponse{
		SessionToken:     tok,
		SessionTimeLimit: int(effective.Seconds()),
		DailyRemaining:   int(remaining.Seconds()),
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
