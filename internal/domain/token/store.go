// Package token mints and consumes single-use session credentials.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
	"github.com/lingora-ai/relay-server/internal/utils/idgen"
)

const keyPrefix = "token:"

// ErrInvalidToken is returned when a token is missing, expired, or was
// already consumed.
var ErrInvalidToken = errors.New("invalid or expired session token")

// entry is the canonical stored token shape.
type entry struct {
	UserID   string `json:"user_id"`
	MintedAt int64  `json:"minted_at"`
}

// Store mints and single-use-consumes session tokens on the shared KV
// store. A token is consumable at most once: consume is an atomic
// get-and-delete, and expiry is enforced by the store's TTL.
type Store struct {
	kv  store.KV
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewStore creates a token store with the given time-to-live.
func NewStore(kv store.KV, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		kv:  kv,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "token-store").Logger(),
	}
}

// Mint generates an unguessable token bound to userID (empty for
// anonymous) and stores it with the configured TTL.
func (s *Store) Mint(ctx context.Context, userID string) (string, error) {
	tok, err := idgen.GenerateToken(32)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	data, err := json.Marshal(entry{UserID: userID, MintedAt: s.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("marshal token entry: %w", err)
	}

	if err := s.kv.Set(ctx, keyPrefix+tok, string(data), s.ttl); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}

// Consume atomically removes the token and returns the associated user
// id. Every call after the first, and any call on an expired token,
// returns ErrInvalidToken.
func (s *Store) Consume(ctx context.Context, tok string) (string, error) {
	if tok == "" {
		return "", ErrInvalidToken
	}

	data, ok, err := s.kv.GetDel(ctx, keyPrefix+tok)
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	if !ok {
		return "", ErrInvalidToken
	}

	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		s.log.Warn().Err(err).Msg("malformed token entry")
		return "", ErrInvalidToken
	}
	return e.UserID, nil
}
