package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/app"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/lock"
)

func memoryConfig() *config.Config {
	return &config.Config{StoreDriver: "memory", ReportLocation: time.UTC, ReportCacheTTL: time.Minute, VATLockTTL: time.Second}
}

func TestBuildWithoutRedisUsesLocalLock(t *testing.T) {
	deps, err := app.Build(context.Background(), memoryConfig(), zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.IsType(t, &lock.Local{}, deps.Lock)
	require.Nil(t, deps.Tasks)
	require.Empty(t, deps.Probes(time.Second, time.Second))

	s, err := deps.Settings.GetOrCreate(context.Background())
	require.NoError(t, err)
	require.Equal(t, "GBP", s.CurrencyCode)
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	deps, err := app.Build(context.Background(), memoryConfig(), zerolog.Nop(), app.Options{Redis: rdb})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.IsType(t, lock.Locker{}, deps.Lock)
	probes := deps.Probes(time.Second, time.Second)
	require.Len(t, probes, 1)
	require.Equal(t, "redis", probes[0].Name)
	require.NoError(t, probes[0].Check(context.Background()))

	mr.Close()
	require.Error(t, probes[0].Check(context.Background()))
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := app.Build(context.Background(), nil, zerolog.Nop(), app.Options{})
	require.Error(t, err)
}
