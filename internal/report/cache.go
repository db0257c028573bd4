package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-resto/internal/resilience"
)

// Cache stores built reports in Redis. Keys embed the store revision the
// report was built at, and the revision moves inside every committing write,
// so nothing has to be invalidated and a Redis outage can only cause misses.
// While Breaker is open reads and writes are skipped.
type Cache struct {
	R       *redis.Client
	TTL     time.Duration
	Prefix  string
	Breaker *resilience.Breaker
}

func (c *Cache) enabled() bool {
	return c != nil && c.R != nil && c.TTL > 0
}

func (c *Cache) prefix() string {
	if c.Prefix == "" {
		return "rpt:"
	}
	return c.Prefix
}

// Key returns the cache key for parts at store revision rev, or "" when the
// cache is off.
func (c *Cache) Key(rev int64, parts ...any) string {
	if !c.enabled() {
		return ""
	}
	formatted := make([]string, 0, len(parts)+1)
	formatted = append(formatted, fmt.Sprintf("r%d", rev))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return c.prefix() + strings.Join(formatted, ":")
}

// GetJSON unmarshals a cached payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	var data []byte
	err := c.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.R.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			data = nil
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) || (err == nil && data == nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = c.Breaker.Do(ctx, func(ctx context.Context) error {
		return c.R.Set(ctx, key, data, c.TTL).Err()
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return nil
	}
	return err
}
