package delivery

import (
	"context"
	"time"
)

// Store persists notifications, their delivery logs and bulk batches.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateNotification inserts n and sets its Version to 1.
	CreateNotification(ctx context.Context, n *Notification) error

	// GetNotification returns ErrNotFound for unknown ids.
	GetNotification(ctx context.Context, id string) (*Notification, error)

	// UpdateNotification writes n if the stored version equals n.Version,
	// then increments n.Version. A mismatch returns ErrConflict.
	UpdateNotification(ctx context.Context, n *Notification) error

	// ListRetryable returns failed notifications with retry budget left whose
	// next attempt time is not after now, oldest first.
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]*Notification, error)

	// ListDue returns pending notifications scheduled at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Notification, error)

	// AppendLog adds an entry. Entries are never modified.
	AppendLog(ctx context.Context, entry LogEntry) error

	// ListLogs returns a notification's entries in append order.
	ListLogs(ctx context.Context, notificationID string) ([]LogEntry, error)

	CreateBatch(ctx context.Context, b *BulkBatch) error
	UpdateBatch(ctx context.Context, b *BulkBatch) error
	GetBatch(ctx context.Context, id string) (*BulkBatch, error)
}
