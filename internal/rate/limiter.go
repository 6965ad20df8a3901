package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxSignInFailures     int
	SignInCooldown        time.Duration
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

// Limiter enforces per-identifier sign-in and per-family refresh limits
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckSignIn returns ErrRateLimited once the identifier has used up its
// failure budget for the current window.
func (l *Limiter) CheckSignIn(ctx context.Context, identifier string) error {
	if l.config.MaxSignInFailures <= 0 {
		return nil
	}
	return l.checkCounter(ctx, signInKey(identifier), l.config.MaxSignInFailures)
}

// RecordSignInFailure counts one failed attempt for the identifier.
func (l *Limiter) RecordSignInFailure(ctx context.Context, identifier string) error {
	if l.config.MaxSignInFailures <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, signInKey(identifier), l.config.SignInCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSignInFailures) {
		return ErrRateLimited
	}
	return nil
}

// ResetSignIn clears the failure counter after a successful sign-in.
func (l *Limiter) ResetSignIn(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, signInKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts a refresh attempt for the family and rejects it once
// the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, familyID string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, refreshKey(familyID), l.config.RefreshCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}

	return nil
}

// SignInFailures returns the current counter for an identifier. Unknown
// identifiers read as zero.
func (l *Limiter) SignInFailures(ctx context.Context, identifier string) (int, error) {
	n, err := l.read(ctx, signInKey(identifier))
	return int(max(n, 0)), err
}

func (l *Limiter) checkCounter(ctx context.Context, key string, limit int) error {
	n, err := l.read(ctx, key)
	if err != nil {
		return err
	}
	if n >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) read(ctx context.Context, key string) (int64, error) {
	n, err := l.redis.Get(ctx, key).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// fixedWindow increments KEYS[1] and arms its expiry on the first hit, in one
// round trip.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := fixedWindow.Run(ctx, l.redis, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

func signInKey(identifier string) string {
	return "lsi:" + strings.ToLower(strings.TrimSpace(identifier))
}

func refreshKey(family string) string { return "lrf:" + family }
