package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bmadcode/courier/pkg/events"
	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/render"
	"github.com/bmadcode/courier/pkg/transport"
)

// Orchestrator drives notifications from acceptance to a terminal status.
// Each call makes at most one transport attempt per notification; retries
// are resubmitted by RetryFailed.
type Orchestrator struct {
	store      Store
	renderer   render.Renderer
	transports transport.Set
	cfg        Config
	channels   ChannelConfigs
	pacers     map[Channel]*transport.Pacer
	policy     RetryPolicy
	locker     Locker
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewOrchestrator wires an orchestrator. It panics on a nil store or renderer.
func NewOrchestrator(store Store, renderer render.Renderer, transports transport.Set, cfg Config, opts ...Option) *Orchestrator {
	if store == nil {
		panic("delivery: nil store")
	}
	if renderer == nil {
		panic("delivery: nil renderer")
	}

	cfg = cfg.withDefaults()
	policy := DefaultRetryPolicy()
	if cfg.RetryMaxWait > 0 {
		policy.Max = cfg.RetryMaxWait
	}

	o := &Orchestrator{
		store:      store,
		renderer:   renderer,
		transports: transports,
		cfg:        cfg,
		channels:   DefaultChannelConfigs(),
		policy:     policy,
		locker:     NewMemoryLocker(),
		publisher:  events.Nop,
		logger:     slog.Default(),
		now:        time.Now,
		newID:      defaultID,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.pacers = make(map[Channel]*transport.Pacer, len(o.channels))
	for ch, cc := range o.channels {
		o.pacers[ch] = transport.NewPacer(cc.RateLimitPerMinute)
	}
	return o
}

// Deliver accepts a request and, unless it is scheduled for later, makes one
// delivery attempt.
//
// Expected failures are reported in the result with Status failed and a
// classified Err. A Go error is returned only for invalid requests
// (ErrValidation) and storage faults; in the validation case nothing is stored.
func (o *Orchestrator) Deliver(ctx context.Context, req DeliveryRequest) (DeliveryResult, error) {
	return o.deliver(ctx, req, "")
}

func (o *Orchestrator) deliver(ctx context.Context, req DeliveryRequest, batchID string) (DeliveryResult, error) {
	req, err := o.normalize(req)
	if err != nil {
		return DeliveryResult{Status: StatusFailed, Message: err.Error(), Err: err}, err
	}

	if err := o.channelAvailable(req.Channel); err != nil {
		o.logger.WarnContext(ctx, "delivery rejected",
			logger.Component("delivery"),
			logger.Channel(req.Channel),
			logger.Error(err),
		)
		return DeliveryResult{Status: StatusFailed, Message: err.Error(), Err: err}, nil
	}

	now := o.now()
	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now.Add(o.cfg.priorityDelay(req.Priority))
	}

	n := &Notification{
		ID:          o.newID(),
		BatchID:     batchID,
		Recipient:   req.Recipient,
		Channel:     req.Channel,
		TemplateID:  req.TemplateID,
		Variables:   req.Variables,
		Status:      StatusPending,
		Priority:    req.Priority,
		MaxRetries:  req.MaxRetries,
		ScheduledAt: scheduledAt,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	release, ok, err := o.locker.TryLock(ctx, lockKey(n.ID))
	if err != nil {
		return DeliveryResult{}, fmt.Errorf("delivery: lock notification: %w", err)
	}
	if !ok {
		return DeliveryResult{}, fmt.Errorf("%w: %s", ErrLocked, n.ID)
	}
	defer release()

	if err := o.store.CreateNotification(ctx, n); err != nil {
		o.logger.ErrorContext(ctx, "failed to create notification",
			logger.Component("delivery"),
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
		return DeliveryResult{}, fmt.Errorf("delivery: create notification: %w", err)
	}

	o.logger.InfoContext(ctx, "notification accepted",
		logger.Component("delivery"),
		logger.NotificationID(n.ID),
		logger.BatchID(batchID),
		logger.Channel(n.Channel),
		slog.String("priority", string(n.Priority)),
	)
	o.publishNotification(ctx, EventNotificationRequested, n)

	if n.ScheduledAt.After(now) {
		return result(n, "scheduled for "+n.ScheduledAt.UTC().Format(time.RFC3339), nil), nil
	}

	r, err := o.attempt(ctx, n)
	if err != nil {
		r.NotificationID = n.ID
	}
	return r, err
}

// normalize validates req and fills defaults.
func (o *Orchestrator) normalize(req DeliveryRequest) (DeliveryRequest, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return req, validationError("template_id is required")
	}
	if !req.Channel.Valid() {
		return req, validationError("unsupported channel %q", req.Channel)
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return req, validationError("recipient is required")
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	if !req.Priority.Valid() {
		return req, validationError("unsupported priority %q", req.Priority)
	}
	switch {
	case req.MaxRetries == 0:
		req.MaxRetries = o.cfg.DefaultMaxRetries
	case req.MaxRetries < 0:
		req.MaxRetries = 0
	}
	return req, nil
}

// channelAvailable reports ErrChannelUnavailable for inactive or transport-less channels.
func (o *Orchestrator) channelAvailable(ch Channel) error {
	cc, ok := o.channels[ch]
	if !ok || !cc.Active {
		return fmt.Errorf("%w: %s is disabled", ErrChannelUnavailable, ch)
	}
	if o.transports.Get(ch) == nil {
		return fmt.Errorf("%w: %s has no transport", ErrChannelUnavailable, ch)
	}
	return nil
}

// attempt renders and sends a pending notification once. The caller holds its lock.
func (o *Orchestrator) attempt(ctx context.Context, n *Notification) (DeliveryResult, error) {
	log := o.logger.With(
		logger.Component("delivery"),
		logger.NotificationID(n.ID),
		logger.Channel(n.Channel),
		logger.RetryCount(n.RetryCount),
	)

	if err := o.channelAvailable(n.Channel); err != nil {
		log.WarnContext(ctx, "delivery deferred", logger.Error(err))
		return result(n, "deferred: "+err.Error(), err), nil
	}

	content, err := o.renderer.Render(ctx, n.TemplateID, n.Variables)
	if err != nil {
		cause := fmt.Errorf("%w: %w", ErrTemplate, err)
		if err := apply(n, TriggerRenderErr); err != nil {
			return DeliveryResult{}, err
		}
		n.LastError = cause.Error()
		n.NextAttemptAt = nil
		if err := o.record(ctx, n, OutcomeFailed, "", cause); err != nil {
			return DeliveryResult{}, err
		}
		log.WarnContext(ctx, "template rendering failed", logger.Error(cause))
		o.publishNotification(ctx, EventNotificationFailed, n)
		return result(n, cause.Error(), cause), nil
	}

	if n.Priority != PriorityUrgent {
		if err := o.pacers[n.Channel].Wait(ctx); err != nil {
			log.WarnContext(ctx, "delivery deferred by rate limit", logger.Error(err))
			return result(n, "deferred: "+err.Error(), err), nil
		}
	}

	if err := apply(n, TriggerDispatch); err != nil {
		return DeliveryResult{}, err
	}
	sentAt := o.now()
	n.Subject = content.Subject
	n.Body = content.Body
	n.SentAt = &sentAt
	if err := o.record(ctx, n, OutcomeSent, "", nil); err != nil {
		return DeliveryResult{}, err
	}

	sendCtx := ctx
	if o.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		defer cancel()
	}

	ref, sendErr := o.transports.Get(n.Channel).Send(sendCtx, n.Recipient, transport.Content{
		Subject: content.Subject,
		Body:    content.Body,
		HTML:    content.HTML,
	}, o.transportMetadata(n))
	elapsed := o.now().Sub(sentAt)

	if sendErr == nil {
		if err := apply(n, TriggerSucceed); err != nil {
			return DeliveryResult{}, err
		}
		deliveredAt := o.now()
		n.DeliveredAt = &deliveredAt
		n.ReferenceID = ref
		n.LastError = ""
		n.NextAttemptAt = nil
		if err := o.record(ctx, n, OutcomeDelivered, ref, nil); err != nil {
			return DeliveryResult{}, err
		}
		log.InfoContext(ctx, "notification delivered", logger.Duration(elapsed), slog.String("reference_id", ref))
		o.publishNotification(ctx, EventNotificationDelivered, n)
		return result(n, "delivered", nil), nil
	}

	cause := fmt.Errorf("%w: %w", ErrTransport, sendErr)
	if err := apply(n, TriggerFail); err != nil {
		return DeliveryResult{}, err
	}
	n.LastError = cause.Error()
	retry, wait := o.policy.Next(n.RetryCount, n.MaxRetries, n.Channel)
	n.NextAttemptAt = nil
	if retry {
		next := o.now().Add(wait)
		n.NextAttemptAt = &next
	}
	if err := o.record(ctx, n, OutcomeFailed, "", cause); err != nil {
		return DeliveryResult{}, err
	}
	log.WarnContext(ctx, "notification delivery failed",
		logger.Duration(elapsed),
		slog.Bool("retryable", retry),
		logger.Error(cause),
	)
	o.publishNotification(ctx, EventNotificationFailed, n)

	res := result(n, cause.Error(), cause)
	res.Retryable = retry
	return res, nil
}

// record persists n and appends a log entry for outcome.
func (o *Orchestrator) record(ctx context.Context, n *Notification, outcome Outcome, ref string, cause error) error {
	now := o.now()
	n.UpdatedAt = now
	if err := o.store.UpdateNotification(ctx, n); err != nil {
		o.logger.ErrorContext(ctx, "failed to update notification",
			logger.Component("delivery"),
			logger.NotificationID(n.ID),
			logger.Status(n.Status),
			logger.Error(err),
		)
		return fmt.Errorf("delivery: update notification %s: %w", n.ID, err)
	}

	entry := LogEntry{
		ID:             o.newID(),
		NotificationID: n.ID,
		Channel:        n.Channel,
		Attempt:        n.RetryCount,
		Outcome:        outcome,
		ReferenceID:    ref,
		AttemptedAt:    now,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := o.store.AppendLog(ctx, entry); err != nil {
		o.logger.ErrorContext(ctx, "failed to append delivery log",
			logger.Component("delivery"),
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
		return fmt.Errorf("delivery: append log for %s: %w", n.ID, err)
	}
	return nil
}

func (o *Orchestrator) transportMetadata(n *Notification) map[string]string {
	meta := make(map[string]string, len(n.Metadata)+2)
	maps.Copy(meta, n.Metadata)
	meta[transport.MetaNotificationID] = n.ID
	if _, ok := meta[transport.MetaTag]; !ok {
		meta[transport.MetaTag] = n.TemplateID
	}
	return meta
}

func result(n *Notification, msg string, err error) DeliveryResult {
	return DeliveryResult{
		NotificationID: n.ID,
		Status:         n.Status,
		Message:        msg,
		RetryCount:     n.RetryCount,
		ReferenceID:    n.ReferenceID,
		Err:            err,
	}
}

func lockKey(id string) string { return "notification:" + id }

// GetDeliveryStatus returns the stored notification or ErrNotFound.
func (o *Orchestrator) GetDeliveryStatus(ctx context.Context, id string) (*Notification, error) {
	return o.store.GetNotification(ctx, id)
}

// DeliveryLogs returns the attempt log of a notification in order.
func (o *Orchestrator) DeliveryLogs(ctx context.Context, id string) ([]LogEntry, error) {
	if _, err := o.store.GetNotification(ctx, id); err != nil {
		return nil, err
	}
	return o.store.ListLogs(ctx, id)
}

// ChannelHealth reports every channel's transport health. Inactive channels
// report unconfigured.
func (o *Orchestrator) ChannelHealth(ctx context.Context) map[Channel]transport.Health {
	health := o.transports.Health(ctx)
	for ch := range health {
		if cc, ok := o.channels[ch]; !ok || !cc.Active {
			health[ch] = transport.Health{Status: transport.HealthUnconfigured, Detail: "disabled"}
		}
	}
	return health
}

// RetryFailed resubmits failed notifications whose retry budget and backoff
// allow it. A positive maxRetries further caps each notification's own budget.
// Notifications locked by a concurrent delivery are skipped.
func (o *Orchestrator) RetryFailed(ctx context.Context, maxRetries int) (RetryResult, error) {
	start := o.now()
	candidates, err := o.store.ListRetryable(ctx, start, o.cfg.SweepLimit)
	if err != nil {
		return RetryResult{}, fmt.Errorf("delivery: list retryable: %w", err)
	}

	var (
		mu      sync.Mutex
		res     RetryResult
		errs    []error
		batches = make(map[string]struct{})
	)
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.SweepConcurrency)

	for _, c := range candidates {
		if maxRetries > 0 && c.RetryCount >= min(c.MaxRetries, maxRetries) {
			continue
		}
		g.Go(func() error {
			r, n, err := o.retryOne(ctx, c.ID, maxRetries)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if n == nil {
				return nil
			}
			res.Retried++
			if r.Status == StatusDelivered {
				res.Succeeded++
			} else {
				res.Failed++
			}
			if n.BatchID != "" {
				batches[n.BatchID] = struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()

	for id := range batches {
		if err := o.refreshBatch(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	o.logger.InfoContext(ctx, "retry sweep finished",
		logger.Component("delivery"),
		logger.Counts(res.Retried, res.Succeeded, res.Failed),
		logger.Duration(o.now().Sub(start)),
	)
	return res, errors.Join(errs...)
}

// retryOne moves one failed notification back to pending and attempts it.
// It returns a nil notification when the candidate was skipped.
func (o *Orchestrator) retryOne(ctx context.Context, id string, maxRetries int) (DeliveryResult, *Notification, error) {
	release, ok, err := o.locker.TryLock(ctx, lockKey(id))
	if err != nil {
		return DeliveryResult{}, nil, fmt.Errorf("delivery: lock notification %s: %w", id, err)
	}
	if !ok {
		return DeliveryResult{}, nil, nil
	}
	defer release()

	n, err := o.store.GetNotification(ctx, id)
	if err != nil {
		return DeliveryResult{}, nil, err
	}

	budget := n.MaxRetries
	if maxRetries > 0 {
		budget = min(budget, maxRetries)
	}
	due := n.NextAttemptAt == nil || !n.NextAttemptAt.After(o.now())
	if n.Status != StatusFailed || n.RetryCount >= budget || !due {
		return DeliveryResult{}, nil, nil
	}

	if err := apply(n, TriggerRetry); err != nil {
		return DeliveryResult{}, nil, err
	}
	n.RetryCount++
	n.NextAttemptAt = nil
	n.UpdatedAt = o.now()
	if err := o.store.UpdateNotification(ctx, n); err != nil {
		if errors.Is(err, ErrConflict) {
			return DeliveryResult{}, nil, nil
		}
		return DeliveryResult{}, nil, fmt.Errorf("delivery: update notification %s: %w", n.ID, err)
	}

	r, err := o.attempt(ctx, n)
	if err != nil {
		return DeliveryResult{}, nil, err
	}
	return r, n, nil
}

// DispatchDue attempts pending notifications whose scheduled time has come.
// It also recovers notifications left pending by an interrupted retry.
func (o *Orchestrator) DispatchDue(ctx context.Context) (DispatchResult, error) {
	start := o.now()
	due, err := o.store.ListDue(ctx, start, o.cfg.SweepLimit)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("delivery: list due: %w", err)
	}

	var (
		mu      sync.Mutex
		res     DispatchResult
		errs    []error
		batches = make(map[string]struct{})
	)
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.SweepConcurrency)

	for _, c := range due {
		g.Go(func() error {
			r, n, err := o.dispatchOne(ctx, c.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if n == nil {
				return nil
			}
			res.Dispatched++
			switch r.Status {
			case StatusDelivered:
				res.Succeeded++
			case StatusFailed:
				res.Failed++
			}
			if n.BatchID != "" {
				batches[n.BatchID] = struct{}{}
			}
			return nil
		})
	}
	_ = g.Wait()

	for id := range batches {
		if err := o.refreshBatch(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	if res.Dispatched > 0 {
		o.logger.InfoContext(ctx, "scheduled dispatch finished",
			logger.Component("delivery"),
			logger.Counts(res.Dispatched, res.Succeeded, res.Failed),
			logger.Duration(o.now().Sub(start)),
		)
	}
	return res, errors.Join(errs...)
}

func (o *Orchestrator) dispatchOne(ctx context.Context, id string) (DeliveryResult, *Notification, error) {
	release, ok, err := o.locker.TryLock(ctx, lockKey(id))
	if err != nil {
		return DeliveryResult{}, nil, fmt.Errorf("delivery: lock notification %s: %w", id, err)
	}
	if !ok {
		return DeliveryResult{}, nil, nil
	}
	defer release()

	n, err := o.store.GetNotification(ctx, id)
	if err != nil {
		return DeliveryResult{}, nil, err
	}
	if n.Status != StatusPending || n.ScheduledAt.After(o.now()) {
		return DeliveryResult{}, nil, nil
	}

	r, err := o.attempt(ctx, n)
	if err != nil {
		return DeliveryResult{}, nil, err
	}
	return r, n, nil
}
