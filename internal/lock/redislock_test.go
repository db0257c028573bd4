package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/lock"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesHolders(t *testing.T) {
	mr, client := newRedis(t)
	locker := lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 2 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		active int
		peak   int
		wg     sync.WaitGroup
	)
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- locker.WithLock(ctx, "vat:2025Q4", time.Second, func(context.Context) error {
				mu.Lock()
				active++
				peak = max(peak, active)
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, peak)
	require.False(t, mr.Exists("lock:vat:2025Q4"))
}

func TestWithLockTimesOut(t *testing.T) {
	mr, client := newRedis(t)
	require.NoError(t, mr.Set("lock:vat:2026Q1", "someone-else"))

	locker := lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "vat:2026Q1", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrTimeout)
	require.False(t, called)
}

func TestWithLockKeepsForeignToken(t *testing.T) {
	mr, client := newRedis(t)
	err := lock.Locker{R: client}.WithLock(context.Background(), "k", time.Second, func(ctx context.Context) error {
		// expiry followed by another holder taking the key
		return client.Set(ctx, "k", "other", time.Minute).Err()
	})
	require.NoError(t, err)
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "other", got)
}

func TestWithLockWithoutRedis(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
