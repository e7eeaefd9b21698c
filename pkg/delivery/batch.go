package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bmadcode/courier/pkg/logger"
)

// BatchCoordinator fans a bulk request out to per-recipient deliveries.
// Recipients are processed in fixed-size chunks; members of a chunk run
// concurrently and the chunk is joined before the next one starts.
type BatchCoordinator struct {
	o      *Orchestrator
	sleep  Sleeper
	logger *slog.Logger
}

// BatchOption configures a BatchCoordinator.
type BatchOption func(*BatchCoordinator)

// WithBatchSleeper overrides the pause between chunks.
func WithBatchSleeper(s Sleeper) BatchOption {
	return func(c *BatchCoordinator) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithBatchLogger sets the logger. Defaults to the orchestrator's.
func WithBatchLogger(l *slog.Logger) BatchOption {
	return func(c *BatchCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewBatchCoordinator creates a coordinator delivering through o.
func NewBatchCoordinator(o *Orchestrator, opts ...BatchOption) *BatchCoordinator {
	if o == nil {
		panic("delivery: nil orchestrator")
	}
	c := &BatchCoordinator{o: o, sleep: sleepContext, logger: o.logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeliverBulk delivers one template to every recipient.
//
// Individual failures never abort the batch. Cancelling ctx stops further
// chunks from starting; members of the chunk in flight run to completion and
// recipients never attempted are counted as failed.
func (c *BatchCoordinator) DeliverBulk(ctx context.Context, req BulkDeliveryRequest) (BulkDeliveryResult, error) {
	if err := c.validate(req); err != nil {
		return BulkDeliveryResult{}, err
	}

	o := c.o
	size := req.BatchSize
	if size == 0 {
		size = o.cfg.BatchSize
	}

	now := o.now()
	batch := &BulkBatch{
		ID:              o.newID(),
		TemplateID:      req.TemplateID,
		Channel:         req.Channel,
		Total:           len(req.Recipients),
		NotificationIDs: []string{},
		Status:          BatchPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.store.CreateBatch(ctx, batch); err != nil {
		return BulkDeliveryResult{}, fmt.Errorf("delivery: create batch: %w", err)
	}

	log := c.logger.With(logger.Component("delivery.batch"), logger.BatchID(batch.ID), logger.Channel(req.Channel))
	log.InfoContext(ctx, "bulk delivery accepted", slog.Int("recipients", batch.Total), slog.Int("batch_size", size))

	results := make([]DeliveryResult, len(req.Recipients))
	memberCtx := context.WithoutCancel(ctx)

	var abortErr error
	processed := 0
	if err := o.channelAvailable(req.Channel); err != nil {
		for i := range results {
			results[i] = DeliveryResult{Status: StatusFailed, Message: err.Error(), Err: err}
		}
		processed = len(results)
	}

	for processed < len(req.Recipients) {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}
		end := min(processed+size, len(req.Recipients))

		g := new(errgroup.Group)
		for i := processed; i < end; i++ {
			g.Go(func() error {
				r, err := o.deliver(memberCtx, DeliveryRequest{
					TemplateID:  req.TemplateID,
					Channel:     req.Channel,
					Recipient:   req.Recipients[i],
					Variables:   req.Variables,
					Priority:    req.Priority,
					ScheduledAt: req.ScheduledAt,
					MaxRetries:  req.MaxRetries,
					Metadata:    req.Metadata,
				}, batch.ID)
				if err != nil {
					r = DeliveryResult{NotificationID: r.NotificationID, Status: StatusFailed, Message: err.Error(), Err: err}
				}
				results[i] = r
				return nil
			})
		}
		_ = g.Wait()

		log.DebugContext(ctx, "chunk finished", slog.Int("from", processed), slog.Int("to", end))
		processed = end

		c.tally(batch, results[:processed])
		if err := o.store.UpdateBatch(ctx, batch); err != nil {
			log.ErrorContext(ctx, "failed to update batch", logger.Error(err))
		}

		if processed < len(req.Recipients) {
			if err := c.sleep(ctx, o.cfg.BatchPause); err != nil {
				abortErr = err
				break
			}
		}
	}

	for i := processed; abortErr != nil && i < len(results); i++ {
		results[i] = DeliveryResult{Status: StatusFailed, Message: "not attempted: " + abortErr.Error(), Err: abortErr}
	}

	c.tally(batch, results)
	if batch.CompletedAt == nil && complete(results) {
		completed := o.now()
		batch.CompletedAt = &completed
	}
	if err := o.store.UpdateBatch(memberCtx, batch); err != nil {
		return BulkDeliveryResult{}, fmt.Errorf("delivery: update batch: %w", err)
	}

	log.InfoContext(ctx, "bulk delivery finished",
		logger.Status(batch.Status),
		logger.Counts(batch.Total, batch.Successful, batch.Failed),
		slog.Int("pending", batch.Pending),
	)
	if batch.CompletedAt != nil {
		o.publishBatch(memberCtx, batch)
	}

	res := BulkDeliveryResult{
		BatchID:    batch.ID,
		Status:     batch.Status,
		Total:      batch.Total,
		Successful: batch.Successful,
		Failed:     batch.Failed,
		Pending:    batch.Pending,
		Results:    results,
	}
	if abortErr != nil {
		return res, fmt.Errorf("delivery: bulk delivery stopped after %d of %d recipients: %w", processed, batch.Total, abortErr)
	}
	return res, nil
}

func (c *BatchCoordinator) validate(req BulkDeliveryRequest) error {
	if strings.TrimSpace(req.TemplateID) == "" {
		return validationError("template_id is required")
	}
	if !req.Channel.Valid() {
		return validationError("unsupported channel %q", req.Channel)
	}
	if req.BatchSize < 0 {
		return validationError("batch_size must not be negative, got %d", req.BatchSize)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return validationError("unsupported priority %q", req.Priority)
	}
	return nil
}

// tally recomputes the batch counters from results. Results without a
// notification id still count, so Successful+Failed+Pending covers every
// processed recipient.
func (c *BatchCoordinator) tally(b *BulkBatch, results []DeliveryResult) {
	b.Successful, b.Failed, b.Pending = 0, 0, 0
	b.NotificationIDs = b.NotificationIDs[:0]
	for _, r := range results {
		if r.NotificationID != "" {
			b.NotificationIDs = append(b.NotificationIDs, r.NotificationID)
		}
		switch r.Status {
		case StatusDelivered:
			b.Successful++
		case StatusFailed:
			b.Failed++
		default:
			b.Pending++
		}
	}
	b.Status = aggregateStatus(b.Successful, b.Failed, b.Pending)
	b.UpdatedAt = c.o.now()
}

// complete reports whether no result can change any more.
func complete(results []DeliveryResult) bool {
	for _, r := range results {
		switch r.Status {
		case StatusDelivered:
		case StatusFailed:
			if r.Retryable {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// GetBatch returns a batch or ErrNotFound.
func (c *BatchCoordinator) GetBatch(ctx context.Context, id string) (*BulkBatch, error) {
	return c.o.store.GetBatch(ctx, id)
}

// refreshBatch recomputes a batch from its children after a sweep touched them.
// Recipients rejected before a notification existed stay counted as failed.
func (o *Orchestrator) refreshBatch(ctx context.Context, id string) error {
	b, err := o.store.GetBatch(ctx, id)
	if err != nil {
		return fmt.Errorf("delivery: get batch %s: %w", id, err)
	}
	if b.CompletedAt != nil {
		return nil
	}

	successful, failed, pending := 0, b.Total-len(b.NotificationIDs), 0
	terminal := true
	for _, nid := range b.NotificationIDs {
		n, err := o.store.GetNotification(ctx, nid)
		if err != nil {
			return fmt.Errorf("delivery: refresh batch %s: %w", id, err)
		}
		switch n.Status {
		case StatusDelivered:
			successful++
		case StatusFailed:
			failed++
		default:
			pending++
		}
		if !n.Terminal() {
			terminal = false
		}
	}

	now := o.now()
	b.Successful, b.Failed, b.Pending = successful, failed, pending
	b.Status = aggregateStatus(successful, failed, pending)
	b.UpdatedAt = now
	if terminal {
		b.CompletedAt = &now
	}
	if err := o.store.UpdateBatch(ctx, b); err != nil {
		return fmt.Errorf("delivery: update batch %s: %w", id, err)
	}
	if terminal {
		o.publishBatch(ctx, b)
	}
	return nil
}
