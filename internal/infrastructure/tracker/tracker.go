// Package tracker is a fire-and-forget usage-event sink. Recording an
// event never blocks the request path: events are queued on a buffered
// channel and dropped (with a metric) when the queue is full.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/infrastructure/metrics"
	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
)

const (
	queueSize = 256
	countTTL  = 25 * time.Hour
)

// Event is one usage record.
type Event struct {
	Type string
	Meta map[string]string
	At   time.Time
}

// Sink receives recorded events. Implementations may forward to an
// external analytics collaborator; failures must stay contained here.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// StoreSink counts events per type and UTC day in the shared KV store.
type StoreSink struct {
	kv store.KV
}

// NewStoreSink creates a store-backed sink.
func NewStoreSink(kv store.KV) *StoreSink {
	return &StoreSink{kv: kv}
}

// Record increments the per-day counter for the event type.
func (s *StoreSink) Record(ctx context.Context, ev Event) error {
	key := "track:" + ev.Type + ":" + ev.At.UTC().Format("2006-01-02")
	_, err := s.kv.Incr(ctx, key, countTTL)
	return err
}

// Tracker drains queued events into the sink on a background goroutine.
type Tracker struct {
	sink      Sink
	queue     chan Event
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a tracker writing to the given sink.
func New(sink Sink, log zerolog.Logger) *Tracker {
	return &Tracker{
		sink:  sink,
		queue: make(chan Event, queueSize),
		log:   log.With().Str("component", "usage-tracker").Logger(),
		done:  make(chan struct{}),
	}
}

// Track queues an event without blocking. Events are dropped when the
// queue is saturated.
func (t *Tracker) Track(eventType string, meta map[string]string) {
	ev := Event{Type: eventType, Meta: meta, At: time.Now()}
	select {
	case t.queue <- ev:
	default:
		metrics.TrackerDropped.Inc()
		t.log.Debug().Str("event", eventType).Msg("tracker queue full, event dropped")
	}
}

// Start begins the drain loop in background. Safe to call multiple
// times; only the first call starts it.
func (t *Tracker) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.run(ctx)
		t.log.Info().Msg("usage tracker started")
	})
}

// Stop drains remaining queued events and shuts the tracker down. Safe
// to call multiple times.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		t.log.Info().Msg("usage tracker stopped")
	})
}

func (t *Tracker) run(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			// Drain what is already queued, then exit.
			for {
				select {
				case ev := <-t.queue:
					t.record(ev)
				default:
					return
				}
			}
		case ev := <-t.queue:
			t.record(ev)
		}
	}
}

func (t *Tracker) record(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.sink.Record(ctx, ev); err != nil {
		t.log.Warn().Err(err).Str("event", ev.Type).Msg("failed to record usage event")
	}
}
