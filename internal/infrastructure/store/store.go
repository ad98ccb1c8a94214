// Package store provides the shared key-value store used for session
// tokens and quota accounting. Two implementations exist: a process-local
// in-memory store and a Redis-backed store for multi-instance deployments.
// Both guarantee per-key atomicity for GetDel and IncrByFloat.
package store

import (
	"context"
	"time"
)

// KV is the shared-store contract. All mutations are atomic per key;
// no multi-key transactions are offered or needed.
type KV interface {
	// Set stores a value with an optional TTL (zero = no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// GetDel atomically removes and returns the value. The second return
	// is false when the key was absent or expired.
	GetDel(ctx context.Context, key string) (string, bool, error)

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// IncrByFloat atomically adds delta to a float counter, refreshing
	// the TTL, and returns the new total. Missing keys start at zero.
	IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)

	// Incr atomically increments an integer counter, refreshing the TTL,
	// and returns the new total.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
