// Package lock serialises work on a named key, across instances through
// Redis or within one process through Local.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-resto/internal/resilience"
)

// ErrTimeout is returned when a lock could not be acquired within MaxWait.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
)

// unlock deletes the key only while it still holds the caller's token, so a
// lock that expired and was taken by someone else is left alone.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a Redis SET NX lock. Waiters retry with jittered exponential
// backoff starting at RetryBackoff, capped at eight times that value.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
	MaxWait      time.Duration
}

// WithLock runs fn while holding key and releases it when fn returns. It
// gives up with ctx's error or ErrTimeout once MaxWait elapses.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	key = l.Prefix + key
	token, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		_ = unlock.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	base := l.RetryBackoff
	if base <= 0 {
		base = defaultRetry
	}
	var giveUp <-chan time.Time
	if l.MaxWait > 0 {
		t := time.NewTimer(l.MaxWait)
		defer t.Stop()
		giveUp = t.C
	}

	token := uuid.NewString()
	for attempt := 1; ; attempt++ {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		wait := time.NewTimer(min(resilience.Backoff(base, attempt, 0.2), 8*base))
		select {
		case <-ctx.Done():
			wait.Stop()
			return "", ctx.Err()
		case <-giveUp:
			wait.Stop()
			return "", ErrTimeout
		case <-wait.C:
		}
	}
}
