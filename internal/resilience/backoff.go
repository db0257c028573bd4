package resilience

import (
	"math/rand/v2"
	"time"
)

const maxBackoffShift = 15

// Backoff doubles base for every attempt after the first and spreads the
// result by up to jitter (0.2 means plus or minus 20%). A zero base is 100ms.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	shift := min(max(attempt-1, 0), maxBackoffShift)
	d := base << shift
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
