package delivery

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/bmadcode/courier/pkg/events"
	"github.com/bmadcode/courier/pkg/logger"
)

// Domain event types.
const (
	EventNotificationRequested = "notification_requested"
	EventNotificationDelivered = "notification_delivered"
	EventNotificationFailed    = "notification_failed"
	EventBatchCompleted        = "batch_completed"
)

func (o *Orchestrator) publishNotification(ctx context.Context, eventType string, n *Notification) {
	attrs := map[string]string{
		"channel":     string(n.Channel),
		"status":      string(n.Status),
		"template_id": n.TemplateID,
		"retry_count": strconv.Itoa(n.RetryCount),
	}
	if n.BatchID != "" {
		attrs["batch_id"] = n.BatchID
	}
	if n.ReferenceID != "" {
		attrs["reference_id"] = n.ReferenceID
	}
	if n.LastError != "" && eventType == EventNotificationFailed {
		attrs["error"] = n.LastError
	}
	o.publish(ctx, eventType, n.ID, attrs)
}

func (o *Orchestrator) publishBatch(ctx context.Context, b *BulkBatch) {
	o.publish(ctx, EventBatchCompleted, b.ID, map[string]string{
		"channel":    string(b.Channel),
		"status":     string(b.Status),
		"total":      strconv.Itoa(b.Total),
		"successful": strconv.Itoa(b.Successful),
		"failed":     strconv.Itoa(b.Failed),
	})
}

func (o *Orchestrator) publish(ctx context.Context, eventType, subject string, attrs map[string]string) {
	err := o.publisher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		Attributes: attrs,
		OccurredAt: o.now(),
	})
	if err != nil {
		o.logger.WarnContext(ctx, "failed to publish event",
			logger.Component("delivery"),
			logger.Event(eventType),
			logger.Error(err),
		)
	}
}
