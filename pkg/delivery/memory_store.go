package delivery

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	logs          map[string][]LogEntry
	batches       map[string]*BulkBatch
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notifications: make(map[string]*Notification),
		logs:          make(map[string][]LogEntry),
		batches:       make(map[string]*BulkBatch),
	}
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *Notification) error {
	if n.ID == "" {
		return validationError("notification id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return fmt.Errorf("%w: notification %s already exists", ErrConflict, n.ID)
	}
	n.Version = 1
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	return n.Clone(), nil
}

func (s *MemoryStore) UpdateNotification(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.notifications[n.ID]
	if !ok {
		return fmt.Errorf("%w: notification %s", ErrNotFound, n.ID)
	}
	if stored.Version != n.Version {
		return fmt.Errorf("%w: notification %s at version %d, have %d", ErrConflict, n.ID, stored.Version, n.Version)
	}
	n.Version++
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *MemoryStore) ListRetryable(_ context.Context, now time.Time, limit int) ([]*Notification, error) {
	return s.list(limit, func(n *Notification) bool {
		return n.Status == StatusFailed &&
			n.RetryCount < n.MaxRetries &&
			(n.NextAttemptAt == nil || !n.NextAttemptAt.After(now))
	}), nil
}

func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*Notification, error) {
	return s.list(limit, func(n *Notification) bool {
		return n.Status == StatusPending && !n.ScheduledAt.After(now)
	}), nil
}

func (s *MemoryStore) list(limit int, match func(*Notification) bool) []*Notification {
	s.mu.RLock()
	var out []*Notification
	for _, n := range s.notifications {
		if match(n) {
			out = append(out, n.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Notification) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) AppendLog(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[entry.NotificationID] = append(s.logs[entry.NotificationID], entry)
	return nil
}

func (s *MemoryStore) ListLogs(_ context.Context, notificationID string) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.logs[notificationID]), nil
}

func (s *MemoryStore) CreateBatch(_ context.Context, b *BulkBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return fmt.Errorf("%w: batch %s already exists", ErrConflict, b.ID)
	}
	s.batches[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) UpdateBatch(_ context.Context, b *BulkBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[b.ID]; !ok {
		return fmt.Errorf("%w: batch %s", ErrNotFound, b.ID)
	}
	s.batches[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (*BulkBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}
