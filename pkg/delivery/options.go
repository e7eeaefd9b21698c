package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bmadcode/courier/pkg/events"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPublisher sets where domain events go. Defaults to events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithLocker sets the per-notification locker. Defaults to a MemoryLocker,
// which only guards a single process.
func WithLocker(l Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithRetryPolicy overrides the retry timing policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithChannelConfigs sets per-channel settings. Channels missing from cfgs are inactive.
func WithChannelConfigs(cfgs ChannelConfigs) Option {
	return func(o *Orchestrator) {
		if cfgs != nil {
			o.channels = cfgs
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides the id generator. Defaults to UUIDv4 strings.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func defaultID() string { return uuid.NewString() }

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
