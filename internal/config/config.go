package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	DBMaxConns         int
	MigrateOnStart     bool
	RedisURL           string
	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
	MaxBodyBytes       int64
	SecurityHeaders    bool
	EnableHSTS         bool
	AuditEnabled       bool
	AuditSamplingRate  float64

	ReportTimezone  string
	ReportLocation  *time.Location
	ReportCacheTTL  time.Duration
	ReportRateLimit string

	DefaultVATRate           decimal.Decimal
	DefaultServiceChargeRate decimal.Decimal
	DefaultCurrencyCode      string
	DefaultCurrencySymbol    string
	DefaultCompanyName       string

	VATLockTTL       time.Duration
	LockRetryBackoff time.Duration

	TaskConcurrency int
	TaskQueue       string

	Obs Observability
}

// Observability groups the logging, metrics, tracing and probe knobs.
type Observability struct {
	LogFormat         string
	LogLevel          string
	MetricsNamespace  string
	Prometheus        bool
	LatencyBuckets    string
	Tracing           bool
	TraceExporter     string
	OTLPEndpoint      string
	OTLPInsecure      bool
	SamplingRatio     float64
	Pprof             bool
	PprofUser         string
	PprofPass         string
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver:        strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), "postgres")),
		DatabaseURL:        k.String("DATABASE_URL"),
		DBMaxConns:         parseInt(k.String("DB_MAX_CONNS"), 10),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		MaxBodyBytes:       int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
		SecurityHeaders:    boolOrDefault(k.String("SECURITY_HEADERS"), true),
		EnableHSTS:         parseBool(k.String("ENABLE_HSTS")),
		AuditEnabled:       boolOrDefault(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate:  parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),

		ReportTimezone:  valueOrDefault(k.String("REPORT_TIMEZONE"), "Europe/London"),
		ReportCacheTTL:  parseDuration(k.String("REPORT_CACHE_TTL"), "10m"),
		ReportRateLimit: valueOrDefault(k.String("REPORT_RATE_LIMIT"), "60-M"),

		DefaultCurrencyCode:   valueOrDefault(k.String("DEFAULT_CURRENCY_CODE"), "GBP"),
		DefaultCurrencySymbol: valueOrDefault(k.String("DEFAULT_CURRENCY_SYMBOL"), "£"),
		DefaultCompanyName:    valueOrDefault(k.String("DEFAULT_COMPANY_NAME"), "My Restaurant"),

		VATLockTTL:       parseDuration(k.String("VAT_LOCK_TTL"), "30s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		TaskConcurrency: parseInt(k.String("TASK_CONCURRENCY"), 5),
		TaskQueue:       valueOrDefault(k.String("TASK_QUEUE"), "default"),

		Obs: Observability{
			LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "resto"),
			Prometheus:        boolOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			LatencyBuckets:    k.String("OBS_METRICS_BUCKETS_MS"),
			Tracing:           boolOrDefault(k.String("OBS_ENABLE_TRACING"), true),
			TraceExporter:     valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:      k.String("OBS_OTLP_ENDPOINT"),
			OTLPInsecure:      parseBool(k.String("OBS_OTLP_INSECURE")),
			SamplingRatio:     parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			Pprof:             parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:         k.String("SECURE_PPROF_BASIC_AUTH_USER"),
			PprofPass:         k.String("SECURE_PPROF_BASIC_AUTH_PASS"),
			ReadyDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
			ReadyRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
			ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		},
	}

	var err error
	if cfg.DefaultVATRate, err = parseRate("DEFAULT_VAT_RATE", k.String("DEFAULT_VAT_RATE"), "20"); err != nil {
		return nil, err
	}
	if cfg.DefaultServiceChargeRate, err = parseRate("DEFAULT_SERVICE_CHARGE_RATE", k.String("DEFAULT_SERVICE_CHARGE_RATE"), "10"); err != nil {
		return nil, err
	}
	if cfg.ReportLocation, err = time.LoadLocation(cfg.ReportTimezone); err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// IsDevelopment reports whether internal error detail may be exposed.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func boolOrDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseRate(key, value, fallback string) (decimal.Decimal, error) {
	raw := valueOrDefault(value, fallback)
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", key)
	}
	return d, nil
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
