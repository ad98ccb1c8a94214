package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	return NewStore(store.NewMemoryStore(zerolog.Nop()), ttl, zerolog.Nop())
}

func TestMintConsumeSingleUse(t *testing.T) {
	s := newTestStore(t, 30*time.Second)
	ctx := context.Background()

	tok, err := s.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if tok == "" {
		t.Fatal("Mint returned empty token")
	}

	userID, err := s.Consume(ctx, tok)
	if err != nil {
		t.Fatalf("first Consume failed: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("Consume returned user %q, want \"user-1\"", userID)
	}

	// Every subsequent consume of the same token must fail.
	for i := 0; i < 3; i++ {
		if _, err := s.Consume(ctx, tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("repeat Consume #%d: err = %v, want ErrInvalidToken", i+1, err)
		}
	}
}

func TestConsumeAnonymous(t *testing.T) {
	s := newTestStore(t, 30*time.Second)
	ctx := context.Background()

	tok, err := s.Mint(ctx, "")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	userID, err := s.Consume(ctx, tok)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if userID != "" {
		t.Fatalf("anonymous token returned user %q", userID)
	}
}

func TestConsumeUnknownOrEmpty(t *testing.T) {
	s := newTestStore(t, 30*time.Second)
	ctx := context.Background()

	if _, err := s.Consume(ctx, "no-such-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unknown token: err = %v, want ErrInvalidToken", err)
	}
	if _, err := s.Consume(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token: err = %v, want ErrInvalidToken", err)
	}
}

func TestConsumeExpired(t *testing.T) {
	s := newTestStore(t, 10*time.Millisecond)
	ctx := context.Background()

	tok, err := s.Mint(ctx, "user-1")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := s.Consume(ctx, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token: err = %v, want ErrInvalidToken", err)
	}
}

func TestMintedTokensAreUnique(t *testing.T) {
	s := newTestStore(t, 30*time.Second)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := s.Mint(ctx, "u")
		if err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token minted: %q", tok)
		}
		seen[tok] = true
	}
}
