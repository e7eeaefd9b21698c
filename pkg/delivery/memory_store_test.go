package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmadcode/courier/pkg/delivery"
)

func TestMemoryStore_OptimisticUpdate(t *testing.T) {
	t.Parallel()
	s := delivery.NewMemoryStore()
	ctx := context.Background()

	n := &delivery.Notification{ID: "n-1", Status: delivery.StatusPending}
	require.NoError(t, s.CreateNotification(ctx, n))
	assert.Equal(t, 1, n.Version)
	assert.ErrorIs(t, s.CreateNotification(ctx, &delivery.Notification{ID: "n-1"}), delivery.ErrConflict)

	a, err := s.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	b, err := s.GetNotification(ctx, "n-1")
	require.NoError(t, err)

	a.Status = delivery.StatusSent
	require.NoError(t, s.UpdateNotification(ctx, a))
	assert.Equal(t, 2, a.Version)

	b.Status = delivery.StatusFailed
	assert.ErrorIs(t, s.UpdateNotification(ctx, b), delivery.ErrConflict)

	got, err := s.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusSent, got.Status)

	assert.ErrorIs(t, s.UpdateNotification(ctx, &delivery.Notification{ID: "missing"}), delivery.ErrNotFound)
	assert.ErrorIs(t, s.CreateNotification(ctx, &delivery.Notification{}), delivery.ErrValidation)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	s := delivery.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateNotification(ctx, &delivery.Notification{ID: "n-1", Metadata: map[string]string{"k": "v"}}))
	got, err := s.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	got.Metadata["k"] = "changed"

	again, err := s.GetNotification(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Metadata["k"])
}

func TestMemoryStore_Listing(t *testing.T) {
	t.Parallel()
	s := delivery.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	fixtures := []*delivery.Notification{
		{ID: "due", Status: delivery.StatusPending, ScheduledAt: past, CreatedAt: now},
		{ID: "later", Status: delivery.StatusPending, ScheduledAt: future, CreatedAt: now},
		{ID: "retry-now", Status: delivery.StatusFailed, MaxRetries: 3, NextAttemptAt: &past, CreatedAt: now.Add(time.Second)},
		{ID: "retry-old", Status: delivery.StatusFailed, MaxRetries: 3, CreatedAt: now.Add(-time.Hour)},
		{ID: "retry-later", Status: delivery.StatusFailed, MaxRetries: 3, NextAttemptAt: &future, CreatedAt: now},
		{ID: "exhausted", Status: delivery.StatusFailed, RetryCount: 3, MaxRetries: 3, CreatedAt: now},
		{ID: "done", Status: delivery.StatusDelivered, CreatedAt: now},
	}
	for _, n := range fixtures {
		require.NoError(t, s.CreateNotification(ctx, n))
	}

	due, err := s.ListDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	retryable, err := s.ListRetryable(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, retryable, 2)
	assert.Equal(t, "retry-old", retryable[0].ID)
	assert.Equal(t, "retry-now", retryable[1].ID)

	limited, err := s.ListRetryable(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_LogsAndBatches(t *testing.T) {
	t.Parallel()
	s := delivery.NewMemoryStore()
	ctx := context.Background()

	for _, o := range []delivery.Outcome{delivery.OutcomeSent, delivery.OutcomeFailed, delivery.OutcomeSent} {
		require.NoError(t, s.AppendLog(ctx, delivery.LogEntry{NotificationID: "n-1", Outcome: o}))
	}
	logs, err := s.ListLogs(ctx, "n-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, delivery.OutcomeFailed, logs[1].Outcome)

	empty, err := s.ListLogs(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)

	b := &delivery.BulkBatch{ID: "b-1", Total: 2, Status: delivery.BatchPending}
	require.NoError(t, s.CreateBatch(ctx, b))
	assert.ErrorIs(t, s.CreateBatch(ctx, b), delivery.ErrConflict)

	b.Status = delivery.BatchDelivered
	b.NotificationIDs = []string{"n-1", "n-2"}
	require.NoError(t, s.UpdateBatch(ctx, b))

	got, err := s.GetBatch(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, delivery.BatchDelivered, got.Status)
	assert.Equal(t, []string{"n-1", "n-2"}, got.NotificationIDs)

	_, err = s.GetBatch(ctx, "missing")
	assert.ErrorIs(t, err, delivery.ErrNotFound)
	assert.ErrorIs(t, s.UpdateBatch(ctx, &delivery.BulkBatch{ID: "missing"}), delivery.ErrNotFound)
}

func TestMemoryLocker(t *testing.T) {
	t.Parallel()
	l := delivery.NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "b")
	assert.True(t, ok)

	release()
	release()
	_, ok, _ = l.TryLock(ctx, "a")
	assert.True(t, ok)
}
