// Package resilience guards optional dependencies so their outages degrade
// features instead of failing requests.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerConfig tunes a Breaker. Zero values pick 1 request, a 0.5 ratio
// and a 30s cool off.
type BreakerConfig struct {
	Target       string
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Target == "" {
		c.Target = "default"
	}
	c.MinRequests = max(c.MinRequests, 1)
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenFor <= 0 {
		c.OpenFor = 30 * time.Second
	}
	return c
}

// window counts outcomes while closed. It decays by half once it holds
// twice the minimum so old successes cannot mask a new outage.
type window struct{ ok, failed int }

func (w window) total() int { return w.ok + w.failed }

func (w *window) decay() {
	w.ok = (w.ok + 1) / 2
	w.failed = (w.failed + 1) / 2
}

// Breaker opens once the failure ratio over at least MinRequests calls
// reaches FailureRatio. After OpenFor it lets one probe through and closes
// again when the probe succeeds.
type Breaker struct {
	// Now defaults to time.Now.
	Now func() time.Time

	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	counts   window
	openedAt time.Time
	probing  bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults()}
	BreakerState.WithLabelValues(b.cfg.Target).Set(float64(Closed))
	return b
}

// State is safe on a nil breaker, which is always closed.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. A nil breaker always allows.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.OpenFor {
		b.moveLocked(ctx, HalfOpen)
	}
	switch b.state {
	case Open:
		return false
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

// Report records the outcome of a call that Allow admitted.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
	case Closed:
		if success {
			b.counts.ok++
		} else {
			b.counts.failed++
		}
		n := b.counts.total()
		switch {
		case n < b.cfg.MinRequests:
		case float64(b.counts.failed) >= b.cfg.FailureRatio*float64(n):
			b.moveLocked(ctx, Open)
		case n > 2*b.cfg.MinRequests:
			b.counts.decay()
		}
	}
}

// Do runs fn when allowed and records its outcome. A call that failed
// because ctx ended is not held against the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow(ctx) {
		return ErrOpenCircuit
	}
	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		b.release()
		return err
	}
	b.Report(ctx, err == nil)
	return err
}

func (b *Breaker) release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.counts = window{}
	if next == Open {
		b.openedAt = b.now()
	}

	target := b.cfg.Target
	BreakerState.WithLabelValues(target).Set(float64(next))
	BreakerTransitions.WithLabelValues(target, prev.String(), next.String()).Inc()

	evt := zerolog.Ctx(ctx).Info().Str("target", target).Stringer("from_state", prev).Stringer("to_state", next)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
