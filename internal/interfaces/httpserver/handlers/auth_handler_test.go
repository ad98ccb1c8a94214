package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/quota"
	"github.com/lingora-ai/relay-server/internal/domain/token"
	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
	"github.com/lingora-ai/relay-server/internal/infrastructure/tracker"
	"github.com/lingora-ai/relay-server/internal/interfaces/httpserver/handlers"
)

type authFixture struct {
	engine *gin.Engine
	tokens *token.Store
	kv     store.KV
}

func newAuthFixture(t *testing.T, cfg *config.Config) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := store.NewMemoryStore(zerolog.Nop())
	tokens := token.NewStore(kv, cfg.TokenTTL, zerolog.Nop())
	qt := quota.NewTracker(kv, cfg.DailyUserLimit, zerolog.Nop())
	usage := tracker.New(tracker.NewStoreSink(kv), zerolog.Nop())

	h := handlers.NewAuthHandler(tokens, qt, usage, cfg, zerolog.Nop())

	engine := gin.New()
	engine.POST("/api/auth", h.Authenticate)

	return &authFixture{engine: engine, tokens: tokens, kv: kv}
}

func testAuthConfig() *config.Config {
	return &config.Config{
		AccessPassword:   "secret",
		TokenTTL:         30 * time.Second,
		SessionTimeLimit: 300 * time.Second,
		DailyUserLimit:   3600 * time.Second,
	}
}

func (f *authFixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newAuthFixture(t, testAuthConfig())

	w := f.post(`{"password":"secret","user_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionToken     string `json:"session_token"`
		SessionTimeLimit int    `json:"session_time_limit"`
		DailyRemaining   int    `json:"daily_remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SessionToken == "" {
		t.Fatal("no session token issued")
	}
	if resp.SessionTimeLimit != 300 {
		t.Fatalf("session_time_limit = %d, want 300", resp.SessionTimeLimit)
	}
	if resp.DailyRemaining != 3600 {
		t.Fatalf("daily_remaining = %d, want 3600", resp.DailyRemaining)
	}

	// The issued token must be consumable exactly once.
	userID, err := f.tokens.Consume(context.Background(), resp.SessionToken)
	if err != nil {
		t.Fatalf("issued token not consumable: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("token bound to %q, want u1", userID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	f := newAuthFixture(t, testAuthConfig())

	if w := f.post(`{"password":"nope"}`); w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if w := f.post(`{}`); w.Code != http.StatusForbidden {
		t.Fatalf("missing password: status = %d, want 403", w.Code)
	}
}

func TestAuthenticateNoPasswordConfigured(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AccessPassword = ""
	f := newAuthFixture(t, cfg)

	if w := f.post(`{}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when no password configured", w.Code)
	}
}

func TestAuthenticateQuotaExhausted(t *testing.T) {
	f := newAuthFixture(t, testAuthConfig())

	// Burn the whole daily budget.
	day := time.Now().UTC().Format("2006-01-02")
	if _, err := f.kv.IncrByFloat(context.Background(), "usage:u1:"+day, 3600, 25*time.Hour); err != nil {
		t.Fatalf("seed usage failed: %v", err)
	}

	w := f.post(`{"password":"secret","user_id":"u1"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Daily limit") {
		t.Fatalf("body = %s, want daily-limit detail", w.Body.String())
	}
}

func TestAuthenticateQuotaBoundSessionLimit(t *testing.T) {
	f := newAuthFixture(t, testAuthConfig())

	// Leave 2 minutes of budget; the offered session limit must shrink
	// to match.
	day := time.Now().UTC().Format("2006-01-02")
	if _, err := f.kv.IncrByFloat(context.Background(), "usage:u1:"+day, 3480, 25*time.Hour); err != nil {
		t.Fatalf("seed usage failed: %v", err)
	}

	w := f.post(`{"password":"secret","user_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionTimeLimit int `json:"session_time_limit"`
		DailyRemaining   int `json:"daily_remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.SessionTimeLimit != 120 {
		t.Fatalf("session_time_limit = %d, want 120", resp.SessionTimeLimit)
	}
	if resp.DailyRemaining != 120 {
		t.Fatalf("daily_remaining = %d, want 120", resp.DailyRemaining)
	}
}

func TestAuthenticateBadBody(t *testing.T) {
	f := newAuthFixture(t, testAuthConfig())

	if w := f.post(`{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
