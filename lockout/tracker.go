// Package lockout counts failed logins per identifier and locks the
// identifier out once the threshold is reached. The redis tracker
// deliberately fails open, an unreachable counter store must never
// take logins down with it.
package lockout

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sepetli/kimlik/config"
	"github.com/sepetli/kimlik/events"
	"github.com/sepetli/kimlik/events/event"
	"go.uber.org/zap"
)

const (
	attemptsPrefix = "login_attempts:"
	lockoutPrefix  = "lockout:"
)

// Tracker tracks failed login attempts
type Tracker interface {
	// RecordFailure counts a failed attempt and returns the running
	// count, the identifier is locked once the threshold is hit
	RecordFailure(ctx context.Context, identifier string) int64
	// IsLocked reports whether the identifier sits in a lockout window
	IsLocked(ctx context.Context, identifier string) bool
	// Clear wipes the counter and the lock, called on successful login
	Clear(ctx context.Context, identifier string)
	// MaxAttempts is the configured threshold
	MaxAttempts() int
	// LockoutDuration is the configured lockout window
	LockoutDuration() time.Duration
}

// RedisTracker is the production tracker, counters are shared across
// instances
type RedisTracker struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	log         *zap.Logger
	dispatcher  *events.Dispatcher
}

func NewRedisTracker(
	log *zap.Logger,
	client *redis.Client,
	cfg *config.BehaviourConfiguration,
	dispatcher *events.Dispatcher,
) *RedisTracker {
	maxAttempts := cfg.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	window := cfg.LockoutDuration
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisTracker{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		log:         log,
		dispatcher:  dispatcher,
	}
}

// degraded logs the fail-open and leaves an audit trail behind, the
// event listener writes it to the audit log
func (t *RedisTracker) degraded(ctx context.Context, operation string, identifier string, err error) {
	t.log.Warn("SECURITY: attempt tracking degraded, failing open",
		zap.String("operation", operation),
		zap.String("identifier", identifier),
		zap.Error(err))
	if t.dispatcher != nil {
		t.dispatcher.Dispatch(ctx, &event.TrackerDegraded{
			Operation: operation,
			Cause:     err.Error(),
		})
	}
}

func (t *RedisTracker) RecordFailure(ctx context.Context, identifier string) int64 {
	key := attemptsPrefix + identifier
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		t.degraded(ctx, "record_failure", identifier, err)
		return 0
	}
	if count == 1 {
		t.client.Expire(ctx, key, t.window)
	}
	if count >= int64(t.maxAttempts) {
		err = t.client.SetEx(ctx, lockoutPrefix+identifier, "locked", t.window).Err()
		if err != nil {
			t.degraded(ctx, "set_lockout_flag", identifier, err)
		}
	}
	return count
}

func (t *RedisTracker) IsLocked(ctx context.Context, identifier string) bool {
	exists, err := t.client.Exists(ctx, lockoutPrefix+identifier).Result()
	if err != nil {
		t.degraded(ctx, "lockout_check", identifier, err)
		return false
	}
	return exists > 0
}

func (t *RedisTracker) Clear(ctx context.Context, identifier string) {
	err := t.client.Del(ctx, attemptsPrefix+identifier, lockoutPrefix+identifier).Err()
	if err != nil {
		t.log.Warn("could not clear attempt counters",
			zap.String("identifier", identifier),
			zap.Error(err))
	}
}

func (t *RedisTracker) MaxAttempts() int {
	return t.maxAttempts
}

func (t *RedisTracker) LockoutDuration() time.Duration {
	return t.window
}
