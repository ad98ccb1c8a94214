package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryStore is a mutex-based in-memory KV store with lazy expiry.
// Not shared across instances; suitable for single-process deployments
// and tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
	log  zerolog.Logger
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	log.Warn().Msg("using in-memory store (not suitable for multi-instance deployments)")
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
		log:  log.With().Str("component", "memory-store").Logger(),
	}
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && e.expiresAt.Before(s.now())
}

// cleanup removes expired keys. Caller must hold the lock.
func (s *MemoryStore) cleanup() {
	for k, e := range s.data {
		if s.expired(e) {
			delete(s.data, k)
		}
	}
}

// Set stores a value with an optional TTL.
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()

	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.data[key] = memoryEntry{value: value, expiresAt: exp}
	return nil
}

// Get returns the value and whether the key exists and is unexpired.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok || s.expired(e) {
		delete(s.data, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// GetDel atomically removes and returns the value.
func (s *MemoryStore) GetDel(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return "", false, nil
	}
	delete(s.data, key)
	if s.expired(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Del removes a key.
func (s *MemoryStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// IncrByFloat atomically adds delta to a float counter.
func (s *MemoryStore) IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current float64
	if e, ok := s.data[key]; ok && !s.expired(e) {
		current, _ = strconv.ParseFloat(e.value, 64)
	}
	total := current + delta

	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.data[key] = memoryEntry{value: strconv.FormatFloat(total, 'f', -1, 64), expiresAt: exp}
	return total, nil
}

// Incr atomically increments an integer counter.
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.data[key]; ok && !s.expired(e) {
		current, _ = strconv.ParseInt(e.value, 10, 64)
	}
	total := current + 1

	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.data[key] = memoryEntry{value: strconv.FormatInt(total, 10), expiresAt: exp}
	return total, nil
}
