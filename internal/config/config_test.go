package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/config"
)

func TestLoadDefaultsForMemoryStore(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"STORE_DRIVER":                "memory",
		"DATABASE_URL":                "",
		"DEFAULT_VAT_RATE":            "",
		"DEFAULT_SERVICE_CHARGE_RATE": "",
		"DEFAULT_CURRENCY_CODE":       "",
		"DEFAULT_CURRENCY_SYMBOL":     "",
		"REPORT_TIMEZONE":             "",
		"MAX_BODY_BYTES":              "",
		"SECURITY_HEADERS":            "",
	})
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, "20", cfg.DefaultVATRate.String())
	require.Equal(t, "10", cfg.DefaultServiceChargeRate.String())
	require.Equal(t, "GBP", cfg.DefaultCurrencyCode)
	require.Equal(t, "£", cfg.DefaultCurrencySymbol)
	require.Equal(t, "Europe/London", cfg.ReportLocation.String())
	require.Equal(t, 30*time.Second, cfg.VATLockTTL)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.True(t, cfg.SecurityHeaders)
}

func TestLoadAudit(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"STORE_DRIVER":        "memory",
		"AUDIT_ENABLED":       "",
		"AUDIT_SAMPLING_RATE": "",
	})
	require.NoError(t, err)
	require.True(t, cfg.AuditEnabled)
	require.Equal(t, 1.0, cfg.AuditSamplingRate)

	cfg, err = config.LoadForTests(map[string]string{
		"STORE_DRIVER":        "memory",
		"AUDIT_ENABLED":       "false",
		"AUDIT_SAMPLING_RATE": "0.5",
	})
	require.NoError(t, err)
	require.False(t, cfg.AuditEnabled)
	require.Equal(t, 0.5, cfg.AuditSamplingRate)
}

func TestLoadObservability(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"STORE_DRIVER":               "memory",
		"OBS_ENABLE_TRACING":         "off",
		"OBS_ENABLE_PROMETHEUS":      "",
		"OBS_TRACING_SAMPLING_RATIO": "0.25",
		"HEALTH_READY_DB_TIMEOUT":    "2s",
		"SHUTDOWN_TIMEOUT":           "",
	})
	require.NoError(t, err)
	require.False(t, cfg.Obs.Tracing)
	require.True(t, cfg.Obs.Prometheus)
	require.Equal(t, 0.25, cfg.Obs.SamplingRatio)
	require.Equal(t, 2*time.Second, cfg.Obs.ReadyDBTimeout)
	require.Equal(t, 15*time.Second, cfg.Obs.ShutdownTimeout)
}

func TestLoadRequiresDatabaseForPostgres(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"STORE_DRIVER": "postgres",
		"DATABASE_URL": "",
	})
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadRejectsOutOfRangeRate(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"STORE_DRIVER":     "memory",
		"DEFAULT_VAT_RATE": "120",
	})
	require.ErrorContains(t, err, "DEFAULT_VAT_RATE")
}

func TestHTTPAddr(t *testing.T) {
	cfg := &config.Config{Port: "9090"}
	require.Equal(t, ":9090", cfg.HTTPAddr())
	cfg.Port = ":7000"
	require.Equal(t, ":7000", cfg.HTTPAddr())
}
