// Package relay implements the per-connection session state machine:
// authenticate, configure, relay media both ways, enforce time limits,
// and tear everything down exactly once.
package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
	"github.com/lingora-ai/relay-server/internal/domain/quota"
	"github.com/lingora-ai/relay-server/internal/domain/token"
	"github.com/lingora-ai/relay-server/internal/infrastructure/metrics"
	"github.com/lingora-ai/relay-server/internal/infrastructure/tracker"
	"github.com/lingora-ai/relay-server/internal/utils/idgen"
)

// CloseUnauthorized is sent when the session token is missing, expired,
// or already consumed.
const CloseUnauthorized = 4003

const closeWriteTimeout = time.Second

// ClientConn is the slice of the client websocket the relay uses.
// *websocket.Conn satisfies it; tests substitute an in-memory fake.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Relay owns one provider adapter and serves client connections against
// it. All per-connection state lives on the stack of Serve.
type Relay struct {
	tokens *token.Store
	quota  *quota.Tracker
	prov   provider.LiveProvider
	usage  *tracker.Tracker
	limit  time.Duration
	maxMsg int
	log    zerolog.Logger
}

// New creates a relay for the configured provider.
func New(tokens *token.Store, qt *quota.Tracker, prov provider.LiveProvider, usage *tracker.Tracker, cfg *config.Config, log zerolog.Logger) *Relay {
	return &Relay{
		tokens: tokens,
		quota:  qt,
		prov:   prov,
		usage:  usage,
		limit:  cfg.SessionTimeLimit,
		maxMsg: cfg.MaxMessageSize,
		log:    log.With().Str("component", "relay").Logger(),
	}
}

// session bundles the per-connection state shared between the reader,
// the audio sink, and the event forwarder.
type session struct {
	conn    ClientConn
	writeMu sync.Mutex
}

func (s *session) writeBinary(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *session) writeText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
}

// Serve runs one client session to completion. The raw token comes from
// the connection query string; an invalid one closes the socket with
// CloseUnauthorized before any session state is created.
func (r *Relay) Serve(ctx context.Context, conn ClientConn, rawToken string) {
	s := &session{conn: conn}
	defer conn.Close()

	userID, err := r.tokens.Consume(ctx, rawToken)
	if err != nil {
		if !errors.Is(err, token.ErrInvalidToken) {
			r.log.Error().Err(err).Msg("token consume failed")
		}
		metrics.TokenConsumeFailures.Inc()
		s.closeWith(CloseUnauthorized, "Unauthorized")
		return
	}

	sessionID, err := idgen.GenerateSecureID("sess", 16)
	if err != nil {
		r.log.Error().Err(err).Msg("session id generation failed")
		s.closeWith(websocket.CloseInternalServerErr, "Internal error")
		return
	}

	log := r.log.With().Str("session_id", sessionID).Logger()
	log.Info().Str("user_id", userID).Str("provider", r.prov.Name()).Msg("session accepted")

	if userID != "" {
		if err := r.quota.Start(ctx, sessionID, userID); err != nil {
			log.Warn().Err(err).Msg("failed to record session start")
		}
	}

	metrics.ActiveSessions.Inc()
	metrics.SessionsStarted.WithLabelValues(r.prov.Name()).Inc()
	r.usage.Track("session_start", map[string]string{"provider": r.prov.Name()})

	started := time.Now()
	outcome := r.run(ctx, s, sessionID, userID, log)

	elapsed := time.Since(started)
	metrics.ActiveSessions.Dec()
	metrics.SessionsClosed.WithLabelValues(outcome).Inc()
	metrics.SessionDuration.Observe(elapsed.Seconds())
	r.usage.Track("session_end", map[string]string{"provider": r.prov.Name(), "outcome": outcome})

	// The session context may already be dead; charge usage on a fresh
	// one so teardown cannot be starved by cancellation.
	if userID != "" {
		endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if dur, ok, err := r.quota.End(endCtx, sessionID); err != nil {
			log.Error().Err(err).Msg("failed to record session usage")
		} else if ok {
			log.Info().Dur("duration", dur).Msg("session usage charged")
		}
	}

	log.Info().Dur("elapsed", elapsed).Str("outcome", outcome).Msg("session closed")
}

// run drives the active phase and returns the close outcome label.
func (r *Relay) run(ctx context.Context, s *session, sessionID, userID string, log zerolog.Logger) string {
	cfg := r.readSetup(s, log)

	// The session never outlives the smaller of the configured limit
	// and the user's remaining daily budget.
	effective := r.limit
	if userID != "" {
		remaining, err := r.quota.Remaining(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("quota lookup failed, using configured limit")
		} else if remaining < effective {
			effective = remaining
		}
	}
	log.Info().Dur("effective_limit", effective).Msg("session limit computed")

	sctx, cancel := context.WithTimeout(ctx, effective)
	defer cancel()

	audioCh := make(chan []byte, 64)
	videoCh := make(chan []byte, 16)
	textCh := make(chan string, 16)
	streams := provider.Streams{Audio: audioCh, Video: videoCh, Text: textCh}

	audioOut := func(data []byte) {
		if err := s.writeBinary(data); err != nil {
			cancel()
		}
	}
	// Playback teardown is client-side, driven by the Interrupted
	// envelope; the relay itself has nothing to flush.
	interrupt := func() {}

	events, err := r.prov.StartSession(sctx, streams, audioOut, interrupt, cfg)
	if err != nil {
		log.Error().Err(err).Msg("provider session failed to start")
		if data, encErr := encodeEvent(provider.ErrorEvent("backend unavailable")); encErr == nil {
			_ = s.writeText(data)
		}
		s.closeWith(websocket.CloseInternalServerErr, "Backend unavailable")
		return "backend_error"
	}

	go r.readClient(sctx, s, cancel, audioCh, videoCh, textCh, log)

	for ev := range events {
		metrics.ProviderEvents.WithLabelValues(string(ev.Kind)).Inc()
		data, err := encodeEvent(ev)
		if err != nil {
			log.Warn().Err(err).Msg("unencodable provider event, skipping")
			continue
		}
		if err := s.writeText(data); err != nil {
			log.Info().Err(err).Msg("client write failed, ending session")
			cancel()
			// Drain remaining events so the adapter can finish.
			for range events {
			}
			return "client_gone"
		}
	}

	if errors.Is(sctx.Err(), context.DeadlineExceeded) {
		s.closeWith(websocket.CloseNormalClosure, "Session time limit reached")
		return "timeout"
	}
	s.closeWith(websocket.CloseNormalClosure, "Session complete")
	return "complete"
}

// readSetup consumes the first client message, which must carry the
// session configuration. A missing or malformed setup is logged and the
// session continues with backend defaults.
func (r *Relay) readSetup(s *session, log zerolog.Logger) provider.Config {
	msgType, data, err := s.conn.ReadMessage()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read setup message")
		return provider.Config{}
	}
	if msgType != websocket.TextMessage {
		log.Warn().Msg("first message not text, using default session config")
		return provider.Config{}
	}

	var first struct {
		Setup json.RawMessage `json:"setup"`
	}
	if err := json.Unmarshal(data, &first); err != nil || len(first.Setup) == 0 {
		log.Warn().Msg("no setup in first message, using default session config")
		return provider.Config{}
	}

	cfg, err := provider.ParseConfig(first.Setup)
	if err != nil {
		log.Warn().Err(err).Msg("malformed setup, using default session config")
		return provider.Config{}
	}
	log.Info().Msg("session config received")
	return cfg
}

// readClient classifies inbound frames until the connection or session
// ends. Binary frames are audio; text JSON {"type":"image","data":b64}
// is a video frame; any other text is conversational input. Oversized
// or undecodable frames are dropped, never fatal.
func (r *Relay) readClient(ctx context.Context, s *session, cancel context.CancelFunc, audioCh chan<- []byte, videoCh chan<- []byte, textCh chan<- string, log zerolog.Logger) {
	defer cancel()
	defer close(audioCh)
	defer close(videoCh)
	defer close(textCh)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info().Err(err).Msg("client read ended")
			}
			return
		}

		if len(data) > r.maxMsg {
			metrics.FramesDropped.WithLabelValues("oversize").Inc()
			log.Warn().Int("size", len(data)).Msg("dropping oversized frame")
			continue
		}

		switch msgType {
		case websocket.BinaryMessage:
			if !send(ctx, audioCh, data) {
				return
			}

		case websocket.TextMessage:
			text := string(data)
			var payload struct {
				Type string `json:"type"`
				Data string `json:"data"`
			}
			if err := json.Unmarshal(data, &payload); err == nil && payload.Type == "image" {
				frame, err := base64.StdEncoding.DecodeString(payload.Data)
				if err != nil || len(frame) == 0 {
					metrics.FramesDropped.WithLabelValues("decode").Inc()
					log.Warn().Msg("dropping undecodable image frame")
					continue
				}
				if !send(ctx, videoCh, frame) {
					return
				}
				continue
			}
			if !send(ctx, textCh, text) {
				return
			}
		}
	}
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
