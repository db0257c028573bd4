// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-resto/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var draining atomic.Bool

// SetReady toggles readiness. The API clears it when shutdown begins.
func SetReady(ready bool) { draining.Store(!ready) }

// Probe checks one dependency within Timeout.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// Report is the readiness body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type Handler struct {
	Probes []Probe
}

// Live answers as long as the process can serve HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, Report{Status: "ok", Checks: map[string]string{}})
}

// Ready runs every probe concurrently and answers 503 when any fails or the
// server is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	rep := h.check(r.Context())
	code := http.StatusOK
	if rep.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, rep)
}

func (h Handler) check(ctx context.Context) Report {
	results := make([]string, len(h.Probes))
	var wg sync.WaitGroup
	for i, p := range h.Probes {
		if p.Check == nil {
			results[i] = "skipped"
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = "ok"
			if err := p.run(ctx); err != nil {
				results[i] = err.Error()
			}
		}()
	}
	wg.Wait()

	rep := Report{Status: "ok", Checks: make(map[string]string, len(h.Probes)+1)}
	if draining.Load() {
		rep.Status = "draining"
		rep.Checks["server"] = "draining"
	}
	for i, p := range h.Probes {
		rep.Checks[p.Name] = results[i]
		if results[i] != "ok" && results[i] != "skipped" && rep.Status == "ok" {
			rep.Status = "unavailable"
		}
	}
	return rep
}

func (p Probe) run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
