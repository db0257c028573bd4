// Package app wires stores, Redis and services from configuration. Both the
// API and the worker build their dependencies through Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/health"
	"github.com/noah-isme/backend-resto/internal/lock"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/resilience"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/store/memory"
	"github.com/noah-isme/backend-resto/internal/store/postgres"
	"github.com/noah-isme/backend-resto/internal/tasks"
	"github.com/noah-isme/backend-resto/internal/vat"
)

// Store is implemented by both the memory and the postgres store.
type Store interface {
	settings.Store
	menu.Store
	order.Store
	payment.Store
	purchase.Store
	vat.Store
	report.Source
	events.EventStore
	audit.Store
}

// Options tune how Build connects.
type Options struct {
	// ServiceName is reported to Postgres as application_name.
	ServiceName string
	// RedisMetrics enables redisotel metric instrumentation.
	RedisMetrics bool
	// Redis overrides REDIS_URL, mainly for tests.
	Redis *redis.Client
}

// Dependencies is the wired application.
type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Store  Store
	Bus    *events.Bus
	Tasks  *asynq.Client
	Lock   vat.Locker

	Settings  *settings.Service
	Menu      *menu.Service
	Orders    *order.Service
	Payments  *payment.Service
	Purchases *purchase.Service
	Reports   *report.Service
	VAT       *vat.Service
	Audit     *audit.Service

	closers []func() error
}

// Build connects the configured store and Redis and constructs every service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	d := &Dependencies{Config: cfg}

	switch cfg.StoreDriver {
	case "memory":
		d.Store = memory.New()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info().Msg("migrations applied")
		}
		pool, err := openPool(ctx, cfg, opts.ServiceName)
		if err != nil {
			return nil, err
		}
		d.DB = pool
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		d.Store = postgres.New(pool)
	}

	d.Redis = opts.Redis
	if d.Redis == nil && cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.Redis = rdb
		d.closers = append(d.closers, rdb.Close)
	}

	cache := &report.Cache{
		R:       d.Redis,
		TTL:     cfg.ReportCacheTTL,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{Target: "report_cache", MinRequests: 5, FailureRatio: 0.5, OpenFor: 30 * time.Second}),
	}
	var notifiers []events.Notifier
	if d.Redis != nil {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err == nil {
			d.Tasks = asynq.NewClient(redisOpt)
			d.closers = append(d.closers, d.Tasks.Close)
			notifiers = append(notifiers, &tasks.Notifier{
				Client:   d.Tasks,
				Queue:    cfg.TaskQueue,
				Location: cfg.ReportLocation,
			})
		} else {
			logger.Warn().Err(err).Msg("background tasks disabled")
		}
		d.Lock = lock.Locker{R: d.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.VATLockTTL}
	} else {
		d.Lock = &lock.Local{}
	}
	d.Bus = &events.Bus{Store: d.Store, Notifiers: notifiers}

	d.Settings = &settings.Service{
		Store: d.Store,
		Defaults: settings.Defaults{
			VATRate:           cfg.DefaultVATRate,
			ServiceChargeRate: cfg.DefaultServiceChargeRate,
			CurrencyCode:      cfg.DefaultCurrencyCode,
			CurrencySymbol:    cfg.DefaultCurrencySymbol,
			CompanyName:       cfg.DefaultCompanyName,
		},
		Events: d.Bus,
	}
	d.Menu = &menu.Service{Store: d.Store, Events: d.Bus}
	d.Orders = &order.Service{Store: d.Store, Settings: d.Settings, Events: d.Bus}
	d.Payments = &payment.Service{Store: d.Store, Events: d.Bus}
	d.Purchases = &purchase.Service{Store: d.Store, Settings: d.Settings, Events: d.Bus}
	d.Reports = &report.Service{Source: d.Store, Settings: d.Settings, Cache: cache, Location: cfg.ReportLocation}
	d.VAT = &vat.Service{
		Store:    d.Store,
		Source:   d.Store,
		Settings: d.Settings,
		Lock:     d.Lock,
		LockTTL:  cfg.VATLockTTL,
		Events:   d.Bus,
		Location: cfg.ReportLocation,
	}
	d.Audit = &audit.Service{Store: d.Store, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate}
	return d, nil
}

// Probes lists readiness checks for the connected dependencies.
func (d *Dependencies) Probes(dbTimeout, redisTimeout time.Duration) []health.Probe {
	var probes []health.Probe
	if d.DB != nil {
		probes = append(probes, health.Probe{Name: "db", Timeout: dbTimeout, Check: d.DB.Ping})
	}
	if d.Redis != nil {
		rdb := d.Redis
		probes = append(probes, health.Probe{Name: "redis", Timeout: redisTimeout, Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return probes
}

// Close releases connections in reverse order of opening.
func (d *Dependencies) Close() error {
	var joined error
	for i := len(d.closers) - 1; i >= 0; i-- {
		joined = errors.Join(joined, d.closers[i]())
	}
	d.closers = nil
	return joined
}

func openPool(ctx context.Context, cfg *config.Config, serviceName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if serviceName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName
	}
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
