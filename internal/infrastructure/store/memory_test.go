package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore() (*MemoryStore, *time.Time) {
	s := NewMemoryStore(zerolog.Nop())
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStoreSetGet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || val != "v" {
		t.Fatalf("Get = (%q, %v), want (\"v\", true)", val, ok)
	}

	_, ok, err = s.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("Get on missing key returned ok")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", 30*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	*now = now.Add(29 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("key expired before its TTL")
	}

	*now = now.Add(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("key still readable after TTL")
	}
}

func TestMemoryStoreGetDel(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, ok, err := s.GetDel(ctx, "k")
	if err != nil {
		t.Fatalf("GetDel failed: %v", err)
	}
	if !ok || val != "v" {
		t.Fatalf("GetDel = (%q, %v), want (\"v\", true)", val, ok)
	}

	if _, ok, _ := s.GetDel(ctx, "k"); ok {
		t.Fatal("second GetDel returned a value")
	}

	// Expired keys are not returned even if still present.
	if err := s.Set(ctx, "e", "v", time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	*now = now.Add(2 * time.Second)
	if _, ok, _ := s.GetDel(ctx, "e"); ok {
		t.Fatal("GetDel returned an expired value")
	}
}

func TestMemoryStoreIncrByFloat(t *testing.T) {
	s, now := newTestStore()
	ctx := context.Background()

	total, err := s.IncrByFloat(ctx, "c", 1.5, time.Minute)
	if err != nil {
		t.Fatalf("IncrByFloat failed: %v", err)
	}
	if total != 1.5 {
		t.Fatalf("total = %v, want 1.5", total)
	}

	total, err = s.IncrByFloat(ctx, "c", 2.25, time.Minute)
	if err != nil {
		t.Fatalf("IncrByFloat failed: %v", err)
	}
	if total != 3.75 {
		t.Fatalf("total = %v, want 3.75", total)
	}

	// Counter resets after expiry.
	*now = now.Add(2 * time.Minute)
	total, err = s.IncrByFloat(ctx, "c", 1, time.Minute)
	if err != nil {
		t.Fatalf("IncrByFloat failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("total after expiry = %v, want 1", total)
	}
}

func TestMemoryStoreIncr(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.Incr(ctx, "n", time.Minute)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if got != want {
			t.Fatalf("Incr = %d, want %d", got, want)
		}
	}
}
