package qwen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

const (
	endpointIntl = "wss://dashscope-intl.aliyuncs.com/api-ws/v1/realtime"
	endpointCN   = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
)

// wsConn is the slice of the websocket connection the adapter uses.
// *websocket.Conn satisfies it; tests substitute a fake.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type dialFunc func(ctx context.Context) (wsConn, error)

// Live is the Qwen Omni realtime adapter. Unlike the SDK-mediated
// backend it speaks the wire protocol directly: base64 media envelopes
// out, typed JSON events in. The realtime API has no session resumption
// and needs no idle keepalive.
type Live struct {
	model string
	dial  dialFunc
	log   zerolog.Logger
}

// New creates a Qwen adapter for the configured DashScope region.
func New(cfg *config.Config, log zerolog.Logger) *Live {
	endpoint := endpointIntl
	if cfg.QwenRegion == "cn" {
		endpoint = endpointCN
	}
	url := fmt.Sprintf("%s?model=%s", endpoint, cfg.QwenModel)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.DashScopeAPIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	l := &Live{
		model: cfg.QwenModel,
		log:   log.With().Str("component", "qwen-live").Logger(),
	}
	l.dial = func(ctx context.Context) (wsConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		return conn, err
	}

	l.log.Info().
		Str("model", cfg.QwenModel).
		Str("region", cfg.QwenRegion).
		Msg("qwen realtime adapter initialized")

	return l
}

// Name implements provider.LiveProvider.
func (l *Live) Name() string { return "Alibaba Qwen" }

// Jurisdiction implements provider.LiveProvider.
func (l *Live) Jurisdiction() string { return "CN" }

// RegisterTool implements provider.LiveProvider. The realtime API does
// not dispatch tool calls over this transport, so registrations are
// accepted and logged but never invoked.
func (l *Live) RegisterTool(name string, fn provider.ToolFunc) {
	l.log.Warn().Str("tool", name).Msg("tool registration ignored, backend has no tool transport")
}

// StartSession dials the realtime endpoint, sends the session setup, and
// relays until the context ends.
func (l *Live) StartSession(ctx context.Context, in provider.Streams, audioOut provider.AudioSink, interrupt provider.InterruptFunc, cfg provider.Config) (<-chan provider.Event, error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}

	s := &session{
		conn:      conn,
		in:        in,
		audioOut:  audioOut,
		interrupt: interrupt,
		events:    make(chan provider.Event, 32),
		log:       l.log,
	}

	if err := s.writeJSON(translateConfig(cfg, uuid.NewString())); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send session config: %w", err)
	}

	go s.run(ctx)
	return s.events, nil
}

type session struct {
	conn      wsConn
	in        provider.Streams
	audioOut  provider.AudioSink
	interrupt provider.InterruptFunc
	events    chan provider.Event
	log       zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *session) run(ctx context.Context) {
	defer close(s.events) // terminal sentinel

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeConn()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.sendAudio(ctx) }()
	go func() { defer wg.Done(); s.sendVideo(ctx) }()
	go func() { defer wg.Done(); s.sendText(ctx) }()

	// ReadMessage blocks without a context; closing the connection
	// unblocks it when the caller cancels.
	go func() {
		<-ctx.Done()
		s.closeConn()
	}()

	s.receive(ctx)
	cancel()
	wg.Wait()
}

func (s *session) closeConn() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close realtime connection")
		}
	})
}

// writeJSON serializes writes to the shared connection.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// mediaEnvelope is the outbound base64 media frame.
type mediaEnvelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Image   string `json:"image,omitempty"`
}

func (s *session) sendAudio(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-s.in.Audio:
			if !ok {
				return
			}
			err := s.writeJSON(mediaEnvelope{
				EventID: uuid.NewString(),
				Type:    "input_audio_buffer.append",
				Audio:   base64.StdEncoding.EncodeToString(chunk),
			})
			if err != nil {
				s.log.Warn().Err(err).Msg("send audio failed")
				return
			}
		}
	}
}

func (s *session) sendVideo(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.in.Video:
			if !ok {
				return
			}
			err := s.writeJSON(mediaEnvelope{
				EventID: uuid.NewString(),
				Type:    "input_image_buffer.append",
				Image:   base64.StdEncoding.EncodeToString(frame),
			})
			if err != nil {
				s.log.Warn().Err(err).Msg("send video failed")
				return
			}
		}
	}
}

// sendText creates a user message item and immediately requests a
// response, since text input bypasses voice activity detection.
func (s *session) sendText(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.in.Text:
			if !ok {
				return
			}
			item := map[string]any{
				"event_id": uuid.NewString(),
				"type":     "conversation.item.create",
				"item": map[string]any{
					"type": "message",
					"role": "user",
					"content": []map[string]any{
						{"type": "input_text", "text": text},
					},
				},
			}
			if err := s.writeJSON(item); err != nil {
				s.log.Warn().Err(err).Msg("send text failed")
				return
			}
			resp := map[string]any{
				"event_id": uuid.NewString(),
				"type":     "response.create",
			}
			if err := s.writeJSON(resp); err != nil {
				s.log.Warn().Err(err).Msg("request response failed")
				return
			}
		}
	}
}

// serverEvent is the superset of inbound event fields the adapter reads.
type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *session) receive(ctx context.Context) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.emit(ctx, provider.ErrorEvent(err.Error()))
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn().Err(err).Msg("malformed server event, skipping")
			continue
		}
		s.dispatch(ctx, ev)
	}
}

func (s *session) dispatch(ctx context.Context, ev serverEvent) {
	switch ev.Type {
	case "response.audio.delta":
		chunk, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			s.log.Warn().Err(err).Msg("undecodable audio delta, skipping")
			return
		}
		if len(chunk) > 0 {
			s.audioOut(chunk)
		}

	case "conversation.item.input_audio_transcription.completed":
		s.emit(ctx, provider.TranscriptionEvent(provider.DirectionInput, ev.Transcript, true))

	case "response.audio_transcript.delta":
		s.emit(ctx, provider.TranscriptionEvent(provider.DirectionOutput, ev.Delta, false))

	case "response.audio_transcript.done":
		s.emit(ctx, provider.TranscriptionEvent(provider.DirectionOutput, ev.Transcript, true))

	case "response.done":
		s.emit(ctx, provider.TurnCompleteEvent())

	case "input_audio_buffer.speech_started":
		// Stop playback before the client hears about the barge-in.
		if s.interrupt != nil {
			s.interrupt()
		}
		s.emit(ctx, provider.InterruptedEvent())

	case "session.created", "session.updated":
		s.log.Debug().Str("event", ev.Type).Msg("session acknowledged")

	case "error":
		msg := "backend error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		s.emit(ctx, provider.ErrorEvent(msg))

	default:
		// High-volume delta events the relay does not surface.
	}
}

func (s *session) emit(ctx context.Context, ev provider.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
