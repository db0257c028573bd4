package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/app"
	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/health"
	"github.com/noah-isme/backend-resto/internal/menu"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/payment"
	"github.com/noah-isme/backend-resto/internal/purchase"
	"github.com/noah-isme/backend-resto/internal/ratelimit"
	"github.com/noah-isme/backend-resto/internal/report"
	"github.com/noah-isme/backend-resto/internal/security"
	"github.com/noah-isme/backend-resto/internal/settings"
	"github.com/noah-isme/backend-resto/internal/vat"
)

type routerOptions struct {
	Logger       zerolog.Logger
	Tracing      bool
	Metrics      *obs.HTTPMetrics
	Pprof        bool
	PprofUser    string
	PprofPass    string
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

func newRouter(deps *app.Dependencies, opts routerOptions) (http.Handler, error) {
	cfg := deps.Config

	var reportLimiter ratelimit.Limiter
	if cfg.ReportRateLimit != "" {
		var (
			l   ratelimit.Fixed
			err error
		)
		if deps.Redis != nil {
			l, err = ratelimit.NewRedis(deps.Redis, cfg.ReportRateLimit, "rl:reports")
		} else {
			l, err = ratelimit.NewMemory(cfg.ReportRateLimit)
		}
		if err != nil {
			return nil, err
		}
		reportLimiter = l
	}
	limitReports := ratelimit.Handler{
		Limiter: reportLimiter,
		Key:     ratelimit.ByClient("reports"),
		OnError: func(err error) { opts.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	orderHandler := &order.Handler{Svc: deps.Orders}
	paymentHandler := &payment.Handler{Svc: deps.Payments}
	menuHandler := &menu.Handler{Svc: deps.Menu}
	settingsHandler := &settings.Handler{Svc: deps.Settings}
	purchaseHandler := &purchase.Handler{Svc: deps.Purchases}
	reportHandler := &report.Handler{Svc: deps.Reports}
	vatHandler := &vat.Handler{Svc: deps.VAT}
	auditHandler := &audit.Handler{Svc: deps.Audit}

	recorder := audit.HTTPRecorder{
		Service: deps.Audit,
		OnError: func(err error) { opts.Logger.Warn().Err(err).Msg("audit entry dropped") },
	}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return recorder.Middleware(audit.Route{Action: action, ResourceType: resource, ResourceIDParam: idParam})
	}
	auditedItem := func(action string) func(http.Handler) http.Handler {
		return recorder.Middleware(audit.Route{
			Action:          action,
			ResourceType:    "orders",
			ResourceIDParam: "orderId",
			MetadataFunc: func(r *http.Request, _ int) map[string]any {
				return map[string]any{"itemId": chi.URLParam(r, "itemId")}
			},
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(common.StaffContext)
	r.Use(obs.RoutePatternMiddleware)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: opts.Logger}.Middleware)
	r.Use(common.DebugErrors(cfg.IsDevelopment()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-Match", common.IdempotencyHeader, common.StaffHeader},
		ExposedHeaders:   []string{"ETag", "Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if opts.Pprof {
		r.Mount("/debug", profiler(opts.PprofUser, opts.PprofPass))
	}

	healthHandler := health.Handler{Probes: deps.Probes(opts.DBTimeout, opts.RedisTimeout)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		v.Route("/orders", func(o chi.Router) {
			o.Get("/", orderHandler.List)
			o.With(idem.Middleware, audited("order.create", "orders", "")).Post("/", orderHandler.Create)
			o.Route("/{orderId}", func(one chi.Router) {
				one.Get("/", orderHandler.Get)
				one.With(audited("order.update", "orders", "orderId")).Patch("/", orderHandler.Update)
				one.With(audited("order.delete", "orders", "orderId")).Delete("/", orderHandler.Delete)
				one.With(auditedItem("order_item.update")).Patch("/items/{itemId}", orderHandler.UpdateItem)
				one.With(auditedItem("order_item.delete")).Delete("/items/{itemId}", orderHandler.DeleteItem)
				one.Get("/payments", paymentHandler.List)
				one.With(idem.Middleware, audited("payment.record", "orders", "orderId")).Post("/payments", paymentHandler.Record)
			})
		})

		v.Get("/settings/accounting", settingsHandler.Get)
		v.With(audited("settings.update", "accounting_settings", "")).Patch("/settings/accounting", settingsHandler.Patch)

		v.Route("/menu", func(m chi.Router) {
			m.Get("/", menuHandler.List)
			m.Post("/", menuHandler.Create)
			m.Patch("/{id}", menuHandler.Update)
			m.Delete("/{id}", menuHandler.Delete)
		})

		v.Get("/suppliers", purchaseHandler.ListSuppliers)
		v.Post("/suppliers", purchaseHandler.CreateSupplier)
		v.Get("/purchases", purchaseHandler.List)
		v.With(idem.Middleware, audited("purchase.create", "purchases", "")).Post("/purchases", purchaseHandler.Create)

		v.Route("/reports", func(rep chi.Router) {
			rep.Use(limitReports.Middleware)
			rep.Get("/daily", reportHandler.Daily)
			rep.Get("/weekly", reportHandler.Weekly)
			rep.Get("/monthly", reportHandler.Monthly)
			rep.Get("/purchases", reportHandler.Purchases)
		})

		v.Get("/tax-periods", vatHandler.ListPeriods)
		v.Post("/tax-periods", vatHandler.OpenPeriod)
		v.With(audited("vat_return.generate", "tax_periods", "id")).Post("/tax-periods/{id}/vat-return", vatHandler.Generate)
		v.Get("/vat-returns/{id}", vatHandler.Get)
		v.With(audited("vat_return.submit", "vat_returns", "id")).Post("/vat-returns/{id}/submit", vatHandler.Submit)
		v.Get("/vat-returns/{id}/export", vatHandler.Export)

		v.Get("/audit", auditHandler.List)
	})

	return r, nil
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
