package transport

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out sends to honour a per-minute rate limit.
// A nil Pacer never blocks.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing perMinute sends per minute.
// It returns nil when perMinute is not positive.
func NewPacer(perMinute int) *Pacer {
	if perMinute <= 0 {
		return nil
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)}
}

// Wait blocks until the next send is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Allow reports whether a send may happen now without waiting.
func (p *Pacer) Allow() bool {
	if p == nil {
		return true
	}
	return p.limiter.Allow()
}
