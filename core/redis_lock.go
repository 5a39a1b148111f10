package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker provides short-lived mutual exclusion across service instances.
// Keys are stored as "<namespace>:lock:<key>".
type RedisLocker struct {
	client *RedisClient
	ttl    time.Duration
	logger Logger
}

// NewRedisLocker creates a locker whose locks expire after ttl.
func NewRedisLocker(client *RedisClient, ttl time.Duration, logger Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultSubmitLockTTL
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock for key without waiting. It returns ErrSubmissionInProgress
// when another holder owns it. The returned release func is safe to call once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, &Error{
			Op:      "RedisLocker.Acquire",
			Kind:    "order",
			ID:      key,
			Message: "An order submission for this store is already in progress.",
			Err:     ErrSubmissionInProgress,
		}
	}

	release := func() {
		// The request context may already be cancelled; release on a fresh one
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.client.RunScript(rctx, releaseScript, []string{lockKey}, token); err != nil {
			l.logger.Warn("Failed to release lock", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
	}
	return release, nil
}
