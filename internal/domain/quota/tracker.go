// Package quota tracks per-user daily conversation-time budgets.
package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lingora-ai/relay-server/internal/infrastructure/store"
)

const (
	usagePrefix   = "usage:"
	sessionPrefix = "session:"

	// usageTTL covers timezone edges around the UTC day boundary.
	usageTTL = 25 * time.Hour
	// sessionTTL bounds abandoned session markers.
	sessionTTL = 2 * time.Hour
)

// startMarker records an in-flight session in the shared store so that
// End can compute elapsed time from any relay instance.
type startMarker struct {
	UserID    string  `json:"user_id"`
	StartTime float64 `json:"start_time"` // unix seconds
}

// Tracker accounts per-user daily usage on the shared KV store. The
// accumulator increment is atomic even under concurrent End calls from
// independent relay instances.
type Tracker struct {
	kv         store.KV
	dailyLimit time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewTracker creates a quota tracker with the given daily limit.
func NewTracker(kv store.KV, dailyLimit time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{
		kv:         kv,
		dailyLimit: dailyLimit,
		now:        time.Now,
		log:        log.With().Str("component", "quota-tracker").Logger(),
	}
}

func (t *Tracker) usageKey(userID string) string {
	return fmt.Sprintf("%s%s:%s", usagePrefix, userID, t.now().UTC().Format("2006-01-02"))
}

// Used returns the seconds the user has accumulated today.
func (t *Tracker) Used(ctx context.Context, userID string) (time.Duration, error) {
	val, ok, err := t.kv.Get(ctx, t.usageKey(userID))
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var secs float64
	if _, err := fmt.Sscanf(val, "%g", &secs); err != nil {
		t.log.Warn().Str("value", val).Msg("malformed usage counter, treating as zero")
		return 0, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Remaining returns today's remaining budget, clamped at zero. Users
// with an empty id are unlimited and get the full daily limit back.
func (t *Tracker) Remaining(ctx context.Context, userID string) (time.Duration, error) {
	if userID == "" {
		return t.dailyLimit, nil
	}
	used, err := t.Used(ctx, userID)
	if err != nil {
		return 0, err
	}
	if used >= t.dailyLimit {
		return 0, nil
	}
	return t.dailyLimit - used, nil
}

// CanStart reports whether the user may begin a new session, with a
// human-readable reason when they may not.
func (t *Tracker) CanStart(ctx context.Context, userID string) (bool, string, error) {
	if userID == "" {
		return true, "no user tracking (anonymous)", nil
	}

	remaining, err := t.Remaining(ctx, userID)
	if err != nil {
		return false, "", err
	}
	if remaining <= 0 {
		return false, fmt.Sprintf("Daily limit of %d minutes reached. Try again tomorrow.", int(t.dailyLimit.Minutes())), nil
	}
	if remaining < time.Minute {
		return false, fmt.Sprintf("Only %d seconds remaining today. Try again tomorrow.", int(remaining.Seconds())), nil
	}
	return true, fmt.Sprintf("%d minutes remaining today", int(remaining.Minutes())), nil
}

// Start records a session-start marker with a bounded TTL so abandoned
// sessions self-expire.
func (t *Tracker) Start(ctx context.Context, sessionID, userID string) error {
	data, err := json.Marshal(startMarker{
		UserID:    userID,
		StartTime: float64(t.now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return fmt.Errorf("marshal session marker: %w", err)
	}
	if err := t.kv.Set(ctx, sessionPrefix+sessionID, string(data), sessionTTL); err != nil {
		return fmt.Errorf("store session marker: %w", err)
	}
	return nil
}

// End atomically removes the start marker, charges the elapsed wall time
// to the user's daily accumulator, and returns the duration. A second
// call on the same session id (or an unknown one) returns ok=false and
// leaves the accumulator unchanged.
func (t *Tracker) End(ctx context.Context, sessionID string) (time.Duration, bool, error) {
	data, ok, err := t.kv.GetDel(ctx, sessionPrefix+sessionID)
	if err != nil {
		return 0, false, fmt.Errorf("remove session marker: %w", err)
	}
	if !ok {
		return 0, false, nil
	}

	var m startMarker
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.log.Warn().Err(err).Str("session_id", sessionID).Msg("malformed session marker")
		return 0, false, nil
	}

	elapsed := float64(t.now().UnixNano())/float64(time.Second) - m.StartTime
	if elapsed < 0 {
		elapsed = 0
	}

	total, err := t.kv.IncrByFloat(ctx, t.usageKey(m.UserID), elapsed, usageTTL)
	if err != nil {
		return 0, false, fmt.Errorf("record usage: %w", err)
	}

	t.log.Info().
		Str("session_id", sessionID).
		Str("user_id", m.UserID).
		Float64("duration_s", elapsed).
		Float64("total_today_s", total).
		Msg("session usage recorded")

	return time.Duration(elapsed * float64(time.Second)), true, nil
}
