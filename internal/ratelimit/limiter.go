package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter decides whether a request under key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Fixed wraps a ulule limiter with a fixed rate.
type Fixed struct {
	L *limiter.Limiter
}

// Allow counts one hit against key.
func (f Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	lc, err := f.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     lc.Limit,
		Remaining: lc.Remaining,
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}

// NewRedis builds a limiter shared across instances through Redis. rate
// uses the ulule format, e.g. "60-M".
func NewRedis(client *redis.Client, rate, prefix string) (Fixed, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Fixed{}, err
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Fixed{}, err
	}
	return Fixed{L: limiter.New(store, r)}, nil
}

// NewMemory builds a process-local limiter.
func NewMemory(rate string) (Fixed, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Fixed{}, err
	}
	return Fixed{L: limiter.New(memory.NewStore(), r)}, nil
}
