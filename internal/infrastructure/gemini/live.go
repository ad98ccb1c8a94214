// Package gemini implements the SDK-mediated conversation backend over
// the Gemini Live bidi API.
package gemini

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lingora-ai/relay-server/internal/config"
	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

const (
	// messageLimit is the soft ceiling on backend messages per session;
	// a one-shot warning is emitted when the count crosses warnThreshold.
	messageLimit  = 1000
	warnThreshold = 900
)

// liveSession is the slice of the SDK session the adapter uses.
// *genai.Session satisfies it; tests substitute a fake.
type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendClientContent(input genai.LiveClientContentInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type connectFunc func(ctx context.Context, cfg *genai.LiveConnectConfig) (liveSession, error)

// Live is the Gemini Live provider adapter.
type Live struct {
	model      string
	sampleRate int
	keepalive  time.Duration
	tools      map[string]provider.ToolFunc
	connect    connectFunc
	log        zerolog.Logger
}

// New creates a Gemini Live adapter against Vertex AI.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Live, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  cfg.ProjectID,
		Location: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	l := &Live{
		model:      cfg.Model,
		sampleRate: cfg.InputSampleRate,
		keepalive:  cfg.KeepaliveInterval,
		tools:      make(map[string]provider.ToolFunc),
		log:        log.With().Str("component", "gemini-live").Logger(),
	}
	l.connect = func(ctx context.Context, lc *genai.LiveConnectConfig) (liveSession, error) {
		return client.Live.Connect(ctx, l.model, lc)
	}

	l.log.Info().
		Str("project", cfg.ProjectID).
		Str("location", cfg.Location).
		Str("model", cfg.Model).
		Int("sample_rate", cfg.InputSampleRate).
		Msg("gemini live adapter initialized")

	return l, nil
}

// Name implements provider.LiveProvider.
func (l *Live) Name() string { return "Google Gemini" }

// Jurisdiction implements provider.LiveProvider.
func (l *Live) Jurisdiction() string { return "US/EU" }

// RegisterTool stores a handler invoked when the backend calls the named tool.
func (l *Live) RegisterTool(name string, fn provider.ToolFunc) {
	l.tools[name] = fn
}

// StartSession connects to the Live API and relays between the inbound
// streams and the backend. The returned channel is closed when the
// session ends; the underlying connection is released on every exit path.
func (l *Live) StartSession(ctx context.Context, in provider.Streams, audioOut provider.AudioSink, interrupt provider.InterruptFunc, cfg provider.Config) (<-chan provider.Event, error) {
	sess, err := l.connect(ctx, translateConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	s := &session{
		sess:       sess,
		in:         in,
		audioOut:   audioOut,
		interrupt:  interrupt,
		tools:      l.tools,
		sampleRate: l.sampleRate,
		keepalive:  l.keepalive,
		events:     make(chan provider.Event, 32),
		log:        l.log,
	}
	go s.run(ctx)
	return s.events, nil
}

// session holds the per-connection state for the five concurrent loops.
type session struct {
	sess       liveSession
	in         provider.Streams
	audioOut   provider.AudioSink
	interrupt  provider.InterruptFunc
	tools      map[string]provider.ToolFunc
	sampleRate int
	keepalive  time.Duration
	events     chan provider.Event
	log        zerolog.Logger

	sendMu    sync.Mutex
	closeOnce sync.Once
	lastAudio atomic.Int64 // unix nanos of the last audio send
}

func (s *session) run(ctx context.Context) {
	defer close(s.events) // terminal sentinel

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeSession()

	s.lastAudio.Store(time.Now().UnixNano())

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); s.sendAudio(ctx) }()
	go func() { defer wg.Done(); s.sendVideo(ctx) }()
	go func() { defer wg.Done(); s.sendText(ctx) }()
	go func() { defer wg.Done(); s.sendKeepalive(ctx) }()

	// Receive blocks without a context; closing the session unblocks it
	// when the caller cancels.
	go func() {
		<-ctx.Done()
		s.closeSession()
	}()

	s.receive(ctx)
	cancel()
	wg.Wait()
}

func (s *session) closeSession() {
	s.closeOnce.Do(func() {
		if err := s.sess.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close live session")
		}
	})
}

// send serializes writes to the shared backend connection.
func (s *session) send(f func() error) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return f()
}

func (s *session) emit(ctx context.Context, ev provider.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *session) sendAudio(ctx context.Context) {
	mime := fmt.Sprintf("audio/pcm;rate=%d", s.sampleRate)
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-s.in.Audio:
			if !ok {
				return
			}
			s.lastAudio.Store(time.Now().UnixNano())
			err := s.send(func() error {
				return s.sess.SendRealtimeInput(genai.LiveRealtimeInput{
					Audio: &genai.Blob{Data: chunk, MIMEType: mime},
				})
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
			err := s.send(func() error {
				return s.sess.SendRealtimeInput(genai.LiveRealtimeInput{
					Video: &genai.Blob{Data: frame, MIMEType: "image/jpeg"},
				})
			})
			if err != nil {
				s.log.Warn().Err(err).Msg("send video failed")
				return
			}
		}
	}
}

func (s *session) sendText(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.in.Text:
			if !ok {
				return
			}
			err := s.send(func() error {
				return s.sess.SendClientContent(genai.LiveClientContentInput{
					Turns: []*genai.Content{
						{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}},
					},
					TurnComplete: genai.Ptr(true),
				})
			})
			if err != nil {
				s.log.Warn().Err(err).Msg("send text failed")
				return
			}
		}
	}
}

// sendKeepalive injects a short silent frame when the audio path has
// been idle for a full interval, so the backend does not close the
// connection on inactivity.
func (s *session) sendKeepalive(ctx context.Context) {
	if s.keepalive <= 0 {
		return
	}

	// 20ms of 16-bit mono silence.
	silence := make([]byte, s.sampleRate*2/50)
	mime := fmt.Sprintf("audio/pcm;rate=%d", s.sampleRate)

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastAudio.Load()))
			if idle < s.keepalive {
				continue
			}
			s.lastAudio.Store(time.Now().UnixNano())
			err := s.send(func() error {
				return s.sess.SendRealtimeInput(genai.LiveRealtimeInput{
					Audio: &genai.Blob{Data: silence, MIMEType: mime},
				})
			})
			if err != nil {
				s.log.Warn().Err(err).Msg("send keepalive failed")
				return
			}
		}
	}
}

func (s *session) receive(ctx context.Context) {
	var toolWG sync.WaitGroup
	defer toolWG.Wait()

	count := 0
	warned := false

	for {
		msg, err := s.sess.Receive()
		if err != nil {
			// Expected when the session is torn down; only surface
			// errors that arrive while the session is still live.
			if ctx.Err() == nil {
				s.emit(ctx, provider.ErrorEvent(err.Error()))
			}
			return
		}

		count++
		if !warned && count >= warnThreshold {
			warned = true
			s.emit(ctx, provider.LimitWarningEvent(count, messageLimit))
		}

		if sc := msg.ServerContent; sc != nil {
			s.handleServerContent(ctx, sc)
		}
		if tc := msg.ToolCall; tc != nil {
			s.handleToolCall(ctx, tc, &toolWG)
		}
		if ru := msg.SessionResumptionUpdate; ru != nil {
			s.emit(ctx, provider.ResumptionEvent(ru.NewHandle, "", ru.Resumable))
		}
		if ga := msg.GoAway; ga != nil {
			s.emit(ctx, provider.GoAwayEvent(fmt.Sprint(ga.TimeLeft)))
		}
	}
}

func (s *session) handleServerContent(ctx context.Context, sc *genai.LiveServerContent) {
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				s.audioOut(part.InlineData.Data)
			}
		}
	}

	if tr := sc.InputTranscription; tr != nil {
		s.emit(ctx, provider.TranscriptionEvent(provider.DirectionInput, tr.Text, true))
	}
	if tr := sc.OutputTranscription; tr != nil {
		s.emit(ctx, provider.TranscriptionEvent(provider.DirectionOutput, tr.Text, true))
	}

	if sc.TurnComplete {
		s.emit(ctx, provider.TurnCompleteEvent())
	}

	if sc.Interrupted {
		// The interrupt sink must run before the event reaches the
		// client so playback stops ahead of the notification.
		if s.interrupt != nil {
			s.interrupt()
		}
		s.emit(ctx, provider.InterruptedEvent())
	}
}

func (s *session) handleToolCall(ctx context.Context, tc *genai.LiveServerToolCall, wg *sync.WaitGroup) {
	var pending []provider.FunctionCall

	for _, fc := range tc.FunctionCalls {
		fn, ok := s.tools[fc.Name]
		if !ok {
			pending = append(pending, provider.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
			continue
		}

		// Handlers run off the receive loop so a slow tool cannot stall
		// event dispatch.
		wg.Add(1)
		go func(fc *genai.FunctionCall, fn provider.ToolFunc) {
			defer wg.Done()

			result, err := fn(ctx, fc.Args)
			if err != nil {
				result = fmt.Sprintf("Error: %v", err)
			}

			sendErr := s.send(func() error {
				return s.sess.SendToolResponse(genai.LiveToolResponseInput{
					FunctionResponses: []*genai.FunctionResponse{
						{ID: fc.ID, Name: fc.Name, Response: map[string]any{"result": result}},
					},
				})
			})
			if sendErr != nil {
				s.log.Warn().Err(sendErr).Str("tool", fc.Name).Msg("send tool response failed")
				return
			}
			s.emit(ctx, provider.ExecutedEvent(fc.Name, fc.Args, result))
		}(fc, fn)
	}

	if len(pending) > 0 {
		s.emit(ctx, provider.PendingCallsEvent(pending))
	}
}
