package delivery

import (
	"math"
	"time"
)

// RetryPolicy decides whether a failed notification is retried and when.
// The wait is Base[channel] * 2^retryCount, capped at Max.
type RetryPolicy struct {
	Base map[Channel]time.Duration
	// Fallback is used for channels missing from Base.
	Fallback time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy returns the per-channel defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base: map[Channel]time.Duration{
			ChannelEmail:   time.Minute,
			ChannelSMS:     30 * time.Second,
			ChannelChat:    30 * time.Second,
			ChannelWebhook: 2 * time.Minute,
		},
		Fallback: time.Minute,
		Max:      time.Hour,
	}
}

// Next reports whether a notification that has used retryCount of maxRetries
// retries may be retried, and how long to wait before doing so.
func (p RetryPolicy) Next(retryCount, maxRetries int, channel Channel) (bool, time.Duration) {
	if retryCount >= maxRetries {
		return false, 0
	}

	base, ok := p.Base[channel]
	if !ok {
		base = p.Fallback
	}
	if base <= 0 {
		return true, 0
	}

	wait := base
	for range max(retryCount, 0) {
		if wait > math.MaxInt64/2 {
			break
		}
		wait *= 2
		if p.Max > 0 && wait >= p.Max {
			break
		}
	}
	if p.Max > 0 && wait > p.Max {
		wait = p.Max
	}
	return true, wait
}
