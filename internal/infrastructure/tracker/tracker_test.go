package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
)

func TestStoreSinkCountsPerDay(t *testing.T) {
	kv := store.NewMemoryStore(zerolog.Nop())
	sink := NewStoreSink(kv)
	ctx := context.Background()

	at := time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := sink.Record(ctx, Event{Type: "auth", At: at}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	val, ok, err := kv.Get(ctx, "track:auth:2026-08-23")
	if err != nil || !ok {
		t.Fatalf("counter missing: ok=%v err=%v", ok, err)
	}
	if val != "3" {
		t.Fatalf("counter = %q, want 3", val)
	}
}

func TestTrackerDrainsOnStop(t *testing.T) {
	kv := store.NewMemoryStore(zerolog.Nop())
	tr := New(NewStoreSink(kv), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)

	for i := 0; i < 10; i++ {
		tr.Track("session_start", nil)
	}
	tr.Stop()

	day := time.Now().UTC().Format("2006-01-02")
	val, ok, err := kv.Get(context.Background(), "track:session_start:"+day)
	if err != nil || !ok {
		t.Fatalf("counter missing: ok=%v err=%v", ok, err)
	}
	if val != "10" {
		t.Fatalf("counter = %q, want 10", val)
	}
}

func TestTrackNeverBlocks(t *testing.T) {
	// Tracker not started: the queue fills up and further events must be
	// dropped rather than block the caller.
	tr := New(NewStoreSink(store.NewMemoryStore(zerolog.Nop())), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize*2; i++ {
			tr.Track("flood", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Track blocked on a saturated queue")
	}
}

type failingSink struct{}

func (failingSink) Record(context.Context, Event) error { return errors.New("sink down") }

func TestSinkFailuresAreContained(t *testing.T) {
	tr := New(failingSink{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr.Start(ctx)

	tr.Track("auth", nil)
	tr.Stop() // must not panic or hang
}
