package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/app"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/health"
	"github.com/noah-isme/backend-resto/internal/obs"
)

const serviceName = "resto-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped")
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	oc := cfg.Obs
	obs.MustRegisterDomainMetrics(oc.MetricsNamespace, nil)

	tracing := oc.Tracing
	if tracing {
		flush, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      oc.OTLPEndpoint,
			Exporter:      oc.TraceExporter,
			Insecure:      oc.OTLPInsecure,
			SamplingRatio: oc.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("tracing disabled")
			tracing = false
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := flush(flushCtx); err != nil {
					logger.Error().Err(err).Msg("flush traces")
				}
			}()
		}
	}

	buildCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Build(buildCtx, cfg, logger, app.Options{ServiceName: serviceName, RedisMetrics: oc.Prometheus})
	cancel()
	if err != nil {
		return fmt.Errorf("build dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	var metrics *obs.HTTPMetrics
	if oc.Prometheus {
		metrics = obs.NewHTTPMetrics(oc.MetricsNamespace, obs.ParseBucketsCSV(oc.LatencyBuckets), nil)
	}
	handler, err := newRouter(deps, routerOptions{
		Logger:       logger,
		Tracing:      tracing,
		Metrics:      metrics,
		Pprof:        oc.Pprof,
		PprofUser:    oc.PprofUser,
		PprofPass:    oc.PprofPass,
		DBTimeout:    oc.ReadyDBTimeout,
		RedisTimeout: oc.ReadyRedisTimeout,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("api listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Dur("timeout", oc.ShutdownTimeout).Msg("draining")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), oc.ShutdownTimeout)
	defer cancelDrain()
	return srv.Shutdown(drainCtx)
}
