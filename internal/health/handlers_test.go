package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/health"
)

func ok(context.Context) error { return nil }

func ready(t *testing.T, h health.Handler) (int, health.Report) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var rep health.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	return rr.Code, rep
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok","checks":{}}`, rr.Body.String())
}

func TestReady(t *testing.T) {
	stuck := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	cases := []struct {
		name   string
		probes []health.Probe
		code   int
		checks map[string]string
	}{
		{
			name:   "all healthy",
			probes: []health.Probe{{Name: "db", Check: ok}, {Name: "redis", Timeout: 50 * time.Millisecond, Check: ok}},
			code:   http.StatusOK,
			checks: map[string]string{"db": "ok", "redis": "ok"},
		},
		{
			name:   "failing dependency",
			probes: []health.Probe{{Name: "db", Check: func(context.Context) error { return errors.New("db down") }}, {Name: "redis", Check: ok}},
			code:   http.StatusServiceUnavailable,
			checks: map[string]string{"db": "db down", "redis": "ok"},
		},
		{
			name:   "probe timeout",
			probes: []health.Probe{{Name: "redis", Timeout: 5 * time.Millisecond, Check: stuck}},
			code:   http.StatusServiceUnavailable,
			checks: map[string]string{"redis": context.DeadlineExceeded.Error()},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, rep := ready(t, health.Handler{Probes: tc.probes})
			require.Equal(t, tc.code, code)
			require.Equal(t, tc.checks, rep.Checks)
		})
	}
}

func TestReadyWhileDraining(t *testing.T) {
	h := health.Handler{Probes: []health.Probe{{Name: "db", Check: ok}}}
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(false)
	code, rep := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", rep.Status)

	health.SetReady(true)
	code, _ = ready(t, h)
	require.Equal(t, http.StatusOK, code)
}
