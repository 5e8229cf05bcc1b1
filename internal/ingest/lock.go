package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockKey is the Redis key guarding ingestion runs.
const LockKey = "igdb:ingest:lock"

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Locker serializes ingestion runs across processes.
type Locker interface {
	// Acquire takes the lock or returns ErrRunInProgress. The returned
	// function releases it.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// NopLocker never blocks. It is used when no Redis is configured.
type NopLocker struct{}

// Acquire implements Locker.
func (NopLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker holds the run lock as a Redis key with a TTL, so a crashed
// run frees it eventually.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLocker creates a locker on LockKey.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: LockKey, ttl: ttl}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release run lock: %w", err)
		}
		return nil
	}
	return release, nil
}
