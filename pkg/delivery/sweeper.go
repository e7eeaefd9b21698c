package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bmadcode/courier/pkg/logger"
)

// Sweeper runs DispatchDue and RetryFailed on a cron schedule.
// Overlapping runs are skipped.
type Sweeper struct {
	o          *Orchestrator
	schedule   string
	maxRetries int
	timeout    time.Duration
	location   *time.Location
	logger     *slog.Logger
	cron       *cron.Cron
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepMaxRetries caps retry budgets for every run. See RetryFailed.
func WithSweepMaxRetries(n int) SweeperOption {
	return func(s *Sweeper) { s.maxRetries = n }
}

// WithSweepTimeout bounds a single run.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.timeout = d }
}

// WithSweepLocation sets the time zone for cron expressions.
func WithSweepLocation(loc *time.Location) SweeperOption {
	return func(s *Sweeper) {
		if loc != nil {
			s.location = loc
		}
	}
}

var sweepParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewSweeper creates a sweeper using the orchestrator's configured schedule.
func NewSweeper(o *Orchestrator, opts ...SweeperOption) (*Sweeper, error) {
	s := &Sweeper{
		o:          o,
		schedule:   o.cfg.SweepSchedule,
		maxRetries: o.cfg.SweepMaxRetries,
		timeout:    5 * time.Minute,
		location:   time.UTC,
		logger:     o.logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := sweepParser.Parse(s.schedule); err != nil {
		return nil, fmt.Errorf("%w: sweep schedule %q: %w", ErrValidation, s.schedule, err)
	}

	s.cron = cron.New(
		cron.WithParser(sweepParser),
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return nil, fmt.Errorf("delivery: schedule sweep: %w", err)
	}
	return s, nil
}

// Start begins running on schedule. It does not block.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("retry sweeper started", logger.Component("delivery.sweeper"), slog.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce dispatches due notifications, then retries failed ones.
func (s *Sweeper) RunOnce(ctx context.Context) (DispatchResult, RetryResult, error) {
	dispatched, dErr := s.o.DispatchDue(ctx)
	retried, rErr := s.o.RetryFailed(ctx, s.maxRetries)
	return dispatched, retried, errors.Join(dErr, rErr)
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "sweep finished with errors",
			logger.Component("delivery.sweeper"),
			logger.Error(err),
		)
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, append([]any{logger.Component("cron")}, keysAndValues...)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{logger.Component("cron"), logger.Error(err)}, keysAndValues...)...)
}
