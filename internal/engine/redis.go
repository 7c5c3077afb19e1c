package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed holder can keep a lot locked.
const DefaultLockTTL = 30 * time.Second

// RedisLocker serializes lots across processes sharing one Redis.
// Keys are "<prefix><lot id>".
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	retry  redislock.RetryStrategy
	logger *slog.Logger
}

// RedisLockerOption configures a RedisLocker.
type RedisLockerOption func(*RedisLocker)

// WithLockPrefix sets the key prefix. Default: "steelworks:lot:".
func WithLockPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithRetryStrategy sets how Obtain retries while the lot is held.
// Default: linear backoff of 25ms until ctx or the TTL expires.
func WithRetryStrategy(s redislock.RetryStrategy) RedisLockerOption {
	return func(l *RedisLocker) {
		l.retry = s
	}
}

// WithLockLogger sets the logger used for release failures.
func WithLockLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a locker on rdb. A zero ttl uses DefaultLockTTL.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, opts ...RedisLockerOption) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	l := &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		prefix: "steelworks:lot:",
		retry:  redislock.LinearBackoff(25 * time.Millisecond),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LockLot obtains the Redis lock for lotID, retrying until ctx is done.
func (l *RedisLocker) LockLot(ctx context.Context, lotID int64) (func(), error) {
	key := l.key(lotID)
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lot %d is locked by another process: %w", lotID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %q: %w", key, err)
	}

	return func() {
		// The unit of work may have ended because ctx was cancelled, so
		// release on a fresh context.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Error("failed to release lot lock", "key", key, "error", err)
		}
	}, nil
}

func (l *RedisLocker) key(lotID int64) string {
	return fmt.Sprintf("%s%d", l.prefix, lotID)
}
