package webhook

import (
	"math/rand/v2"
	"time"
)

// BackoffStrategy calculates the pause after a failed attempt.
// Attempt is zero-based: Delay(0) is the wait after the first failure.
// Implementations must be safe for concurrent use.
type BackoffStrategy interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff waits Base * 2^attempt, optionally capped by Max and
// spread by JitterFactor (0 disables jitter).
type ExponentialBackoff struct {
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

func (e ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	base := e.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	// Clamp the shift so huge attempt numbers cannot overflow.
	shift := min(attempt, 30)
	delay := base << shift
	if delay < base {
		delay = base
	}

	if e.JitterFactor > 0 {
		spread := (rand.Float64()*2 - 1) * e.JitterFactor
		delay = time.Duration(float64(delay) * (1 + spread))
	}
	if e.Max > 0 && delay > e.Max {
		delay = e.Max
	}
	return delay
}

// FixedBackoff waits the same interval after every failure.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy doubles a 5s base delay: 5s, 10s, 20s, ...
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{Base: DefaultBaseDelay}
}
