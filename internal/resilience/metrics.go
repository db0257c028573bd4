package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker state gauge values follow State: 0 closed, 1 open, 2 half open.
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "resto",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state per guarded dependency.",
	}, []string{"target"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resto",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state changes per guarded dependency.",
	}, []string{"target", "from", "to"})
)
