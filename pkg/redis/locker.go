package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token,
// so an expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed try-lock keyed by string.
// Locks expire after the configured TTL if the holder dies.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Locker using cfg.LockPrefix and cfg.LockTTL.
func NewLocker(client redis.UniversalClient, cfg Config) *Locker {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Locker{client: client, prefix: cfg.LockPrefix, ttl: ttl}
}

// TryLock acquires key without waiting. ok is false when another holder owns it.
// release is a no-op when ok is false.
func (l *Locker) TryLock(ctx context.Context, key string) (release func(), ok bool, err error) {
	token := uuid.NewString()
	full := l.prefix + key

	ok, err = l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return func() {}, false, errors.Join(ErrLockFailed, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	return func() {
		// Release must succeed even when the caller's ctx is already cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}, true, nil
}
