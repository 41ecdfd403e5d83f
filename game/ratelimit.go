package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
)

const (
	DefaultPostCooldown = 5 * time.Minute
	DefaultGuessCap     = 3
)

func postRateKey(username string) string {
	return "ratelimit:post:" + username
}

func guessRateKey(username, postID string) string {
	return "ratelimit:guess:" + username + ":" + postID
}

// RateLimiter enforces the posting cooldown and the per-post guess cap.
//
// Checks fail open: when the store cannot be read or the record cannot be
// decoded, the action is allowed and a warning is logged. Availability of
// the game is preferred over strict enforcement.
type RateLimiter struct {
	store    core.Store
	logger   core.Logger
	now      func() time.Time
	cooldown time.Duration
	guessCap int
}

// NewRateLimiter creates a limiter with the default cooldown and cap.
func NewRateLimiter(store core.Store, logger core.Logger, now func() time.Time) *RateLimiter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		store:    store,
		logger:   logger,
		now:      now,
		cooldown: DefaultPostCooldown,
		guessCap: DefaultGuessCap,
	}
}

// WithLimits overrides the cooldown and cap; non-positive values keep the current ones.
func (r *RateLimiter) WithLimits(cooldown time.Duration, guessCap int) *RateLimiter {
	if cooldown > 0 {
		r.cooldown = cooldown
	}
	if guessCap > 0 {
		r.guessCap = guessCap
	}
	return r
}

// Cooldown is the minimum time between two posts by the same player.
func (r *RateLimiter) Cooldown() time.Duration { return r.cooldown }

// GuessCap is the number of guesses a player may make on one post.
func (r *RateLimiter) GuessCap() int { return r.guessCap }

// CanPost allows a post when there is no prior record or the cooldown has passed.
func (r *RateLimiter) CanPost(ctx context.Context, username string) bool {
	rec, ok := r.read(ctx, "post", postRateKey(username))
	if !ok {
		return true
	}
	return r.now().Sub(rec.LastAction) >= r.cooldown
}

// RecordPost overwrites the post record with {now, 1}.
func (r *RateLimiter) RecordPost(ctx context.Context, username string) error {
	return r.write(ctx, postRateKey(username), RateLimitRecord{LastAction: r.now(), Count: 1})
}

// CanGuess allows a guess when there is no prior record or fewer than guessCap guesses.
func (r *RateLimiter) CanGuess(ctx context.Context, username, postID string) bool {
	rec, ok := r.read(ctx, "guess", guessRateKey(username, postID))
	if !ok {
		return true
	}
	return rec.Count < r.guessCap
}

// RecordGuess increments the guess counter and refreshes lastAction.
// An unreadable record restarts the count at 1.
func (r *RateLimiter) RecordGuess(ctx context.Context, username, postID string) error {
	key := guessRateKey(username, postID)
	rec, _ := r.read(ctx, "guess", key)
	rec.Count++
	rec.LastAction = r.now()
	return r.write(ctx, key, rec)
}

// read returns ok=false for a missing, unreadable or corrupt record.
func (r *RateLimiter) read(ctx context.Context, action, key string) (RateLimitRecord, bool) {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.WarnWithContext(ctx, "Rate limit check failed open", map[string]interface{}{
			"operation": "ratelimit_check",
			"action":    action,
			"error":     err,
		})
		return RateLimitRecord{}, false
	}
	if !found {
		return RateLimitRecord{}, false
	}

	var rec RateLimitRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		r.logger.WarnWithContext(ctx, "Rate limit record unreadable, failing open", map[string]interface{}{
			"operation": "ratelimit_check",
			"action":    action,
			"error":     err,
		})
		return RateLimitRecord{}, false
	}
	return rec, true
}

func (r *RateLimiter) write(ctx context.Context, key string, rec RateLimitRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key, string(data))
}
