package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bmadcode/courier/pkg/delivery"
	"github.com/bmadcode/courier/pkg/pg"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations holds the goose migrations for this store, rooted at the
// migrations directory.
var Migrations fs.FS = mustSub(migrationFiles, "migrations")

func mustSub(f fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// DB is the subset of *pgxpool.Pool the store needs. A pgx.Tx also satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL delivery.Store.
type Store struct {
	db DB
}

var _ delivery.Store = (*Store)(nil)

// New creates a store on db. The schema must already be migrated.
func New(db DB) *Store {
	if db == nil {
		panic("pgstore: nil db")
	}
	return &Store{db: db}
}

const notificationColumns = `id, coalesce(batch_id, ''), recipient, channel, template_id, variables,
	subject, body, status, priority, retry_count, max_retries, scheduled_at,
	next_attempt_at, sent_at, delivered_at, last_error, reference_id, metadata,
	version, created_at, updated_at`

func (s *Store) CreateNotification(ctx context.Context, n *delivery.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("%w: notification id is required", delivery.ErrValidation)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (
			id, batch_id, recipient, channel, template_id, variables, subject, body,
			status, priority, retry_count, max_retries, scheduled_at, next_attempt_at,
			sent_at, delivered_at, last_error, reference_id, metadata, version,
			created_at, updated_at
		) VALUES ($1, nullif($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, 1, $20, $21)`,
		n.ID, n.BatchID, n.Recipient, string(n.Channel), n.TemplateID, jsonMap(n.Variables),
		n.Subject, n.Body, string(n.Status), string(n.Priority), n.RetryCount, n.MaxRetries,
		n.ScheduledAt, n.NextAttemptAt, n.SentAt, n.DeliveredAt, n.LastError, n.ReferenceID,
		stringMap(n.Metadata), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: notification %s already exists", delivery.ErrConflict, n.ID)
		}
		return fmt.Errorf("pgstore: insert notification: %w", err)
	}
	n.Version = 1
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*delivery.Notification, error) {
	row := s.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: notification %s", delivery.ErrNotFound, id)
		}
		return nil, fmt.Errorf("pgstore: get notification: %w", err)
	}
	return n, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n *delivery.Notification) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notifications SET
			subject = $3, body = $4, status = $5, retry_count = $6, max_retries = $7,
			scheduled_at = $8, next_attempt_at = $9, sent_at = $10, delivered_at = $11,
			last_error = $12, reference_id = $13, metadata = $14, updated_at = $15,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		n.ID, n.Version, n.Subject, n.Body, string(n.Status), n.RetryCount, n.MaxRetries,
		n.ScheduledAt, n.NextAttemptAt, n.SentAt, n.DeliveredAt, n.LastError, n.ReferenceID,
		stringMap(n.Metadata), n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgstore: update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)`, n.ID).Scan(&exists); err != nil {
			return fmt.Errorf("pgstore: update notification: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: notification %s", delivery.ErrNotFound, n.ID)
		}
		return fmt.Errorf("%w: notification %s changed since version %d", delivery.ErrConflict, n.ID, n.Version)
	}
	n.Version++
	return nil
}

func (s *Store) ListRetryable(ctx context.Context, now time.Time, limit int) ([]*delivery.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = 'failed' AND retry_count < max_retries
			AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*delivery.Notification, error) {
	return s.list(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
}

func (s *Store) list(ctx context.Context, query string, now time.Time, limit int) ([]*delivery.Notification, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx, query, now, lim)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list notifications: %w", err)
	}
	defer rows.Close()

	var out []*delivery.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list notifications: %w", err)
	}
	return out, nil
}

func (s *Store) AppendLog(ctx context.Context, e delivery.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_logs (id, notification_id, channel, attempt, outcome, reference_id, error, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.NotificationID, string(e.Channel), e.Attempt, string(e.Outcome), e.ReferenceID, e.Error, e.AttemptedAt,
	)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return fmt.Errorf("%w: notification %s", delivery.ErrNotFound, e.NotificationID)
		}
		return fmt.Errorf("pgstore: append log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, notificationID string) ([]delivery.LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, notification_id, channel, attempt, outcome, reference_id, error, attempted_at
		FROM delivery_logs WHERE notification_id = $1 ORDER BY seq`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list logs: %w", err)
	}
	defer rows.Close()

	out := []delivery.LogEntry{}
	for rows.Next() {
		var (
			e                delivery.LogEntry
			channel, outcome string
		)
		if err := rows.Scan(&e.ID, &e.NotificationID, &channel, &e.Attempt, &outcome, &e.ReferenceID, &e.Error, &e.AttemptedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan log: %w", err)
		}
		e.Channel, e.Outcome = delivery.Channel(channel), delivery.Outcome(outcome)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list logs: %w", err)
	}
	return out, nil
}

func (s *Store) CreateBatch(ctx context.Context, b *delivery.BulkBatch) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_batches (id, template_id, channel, total, notification_ids,
			successful, failed, pending, status, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.TemplateID, string(b.Channel), b.Total, ids(b.NotificationIDs),
		b.Successful, b.Failed, b.Pending, string(b.Status), b.CreatedAt, b.UpdatedAt, b.CompletedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: batch %s already exists", delivery.ErrConflict, b.ID)
		}
		return fmt.Errorf("pgstore: insert batch: %w", err)
	}
	return nil
}

func (s *Store) UpdateBatch(ctx context.Context, b *delivery.BulkBatch) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_batches SET notification_ids = $2, successful = $3, failed = $4,
			pending = $5, status = $6, updated_at = $7, completed_at = $8
		WHERE id = $1`,
		b.ID, ids(b.NotificationIDs), b.Successful, b.Failed, b.Pending, string(b.Status), b.UpdatedAt, b.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("pgstore: update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: batch %s", delivery.ErrNotFound, b.ID)
	}
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*delivery.BulkBatch, error) {
	var (
		b               delivery.BulkBatch
		channel, status string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, template_id, channel, total, notification_ids, successful, failed, pending,
			status, created_at, updated_at, completed_at
		FROM notification_batches WHERE id = $1`, id,
	).Scan(&b.ID, &b.TemplateID, &channel, &b.Total, &b.NotificationIDs, &b.Successful, &b.Failed,
		&b.Pending, &status, &b.CreatedAt, &b.UpdatedAt, &b.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch %s", delivery.ErrNotFound, id)
		}
		return nil, fmt.Errorf("pgstore: get batch: %w", err)
	}
	b.Channel, b.Status = delivery.Channel(channel), delivery.BatchStatus(status)
	return &b, nil
}

func scanNotification(row pgx.Row) (*delivery.Notification, error) {
	var (
		n                         delivery.Notification
		channel, status, priority string
	)
	err := row.Scan(
		&n.ID, &n.BatchID, &n.Recipient, &channel, &n.TemplateID, &n.Variables,
		&n.Subject, &n.Body, &status, &priority, &n.RetryCount, &n.MaxRetries, &n.ScheduledAt,
		&n.NextAttemptAt, &n.SentAt, &n.DeliveredAt, &n.LastError, &n.ReferenceID, &n.Metadata,
		&n.Version, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Channel, n.Status, n.Priority = delivery.Channel(channel), delivery.Status(status), delivery.Priority(priority)
	return &n, nil
}

// jsonb columns are NOT NULL; nil maps are written as empty objects.
func jsonMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func stringMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func ids(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
