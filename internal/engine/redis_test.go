package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejasri1920/Steelworks/internal/lot"
	"github.com/tejasri1920/Steelworks/internal/store"
)

// redisServer starts an in-process Redis for the test.
func redisServer(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// redisClient connects a new client to mr, standing in for one process.
func redisClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRedisLocker_Key(t *testing.T) {
	l := &RedisLocker{prefix: "p:"}
	assert.Equal(t, "p:42", l.key(42))
}

func TestRedisLocker_Defaults(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	l := NewRedisLocker(rdb, 0)
	assert.Equal(t, DefaultLockTTL, l.ttl)
	assert.Equal(t, "steelworks:lot:", l.prefix)

	l = NewRedisLocker(rdb, time.Second, WithLockPrefix("x:"))
	assert.Equal(t, time.Second, l.ttl)
	assert.Equal(t, "x:", l.prefix)
}

func TestRedisLocker_Exclusive(t *testing.T) {
	mr := redisServer(t)
	l := NewRedisLocker(redisClient(t, mr), 5*time.Second,
		WithRetryStrategy(redislock.NoRetry()))

	unlock, err := l.LockLot(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, mr.Exists("steelworks:lot:1"))

	_, err = l.LockLot(context.Background(), 1)
	assert.ErrorIs(t, err, redislock.ErrNotObtained)

	// Other lots are independent.
	other, err := l.LockLot(context.Background(), 2)
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("steelworks:lot:1"))
	again, err := l.LockLot(context.Background(), 1)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_WaitsForOtherProcess(t *testing.T) {
	mr := redisServer(t)
	first := NewRedisLocker(redisClient(t, mr), 5*time.Second)
	second := NewRedisLocker(redisClient(t, mr), 5*time.Second,
		WithRetryStrategy(redislock.LinearBackoff(5*time.Millisecond)))

	unlock, err := first.LockLot(context.Background(), 7)
	require.NoError(t, err)

	obtained := make(chan error, 1)
	go func() {
		release, err := second.LockLot(context.Background(), 7)
		if err == nil {
			release()
		}
		obtained <- err
	}()

	select {
	case err := <-obtained:
		t.Fatalf("second process obtained a held lot lock (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-obtained:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second process never obtained the released lock")
	}
}

func TestRedisLocker_ExpiresAfterTTL(t *testing.T) {
	mr := redisServer(t)
	l := NewRedisLocker(redisClient(t, mr), time.Second,
		WithRetryStrategy(redislock.NoRetry()))

	_, err := l.LockLot(context.Background(), 3)
	require.NoError(t, err)

	// A crashed holder never releases; the TTL frees the lot.
	mr.FastForward(2 * time.Second)

	unlock, err := l.LockLot(context.Background(), 3)
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_WithEngine(t *testing.T) {
	mr := redisServer(t)
	locker := NewRedisLocker(redisClient(t, mr), 5*time.Second)
	_, s := setupEngine(t, WithLocker(locker))
	createLot(t, s, 1)

	insert(t, s, ship(1))

	rec, found, err := s.GetCompleteness(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, lot.NewCompleteness(1, lot.Flags{Shipping: true}), rec)

	// Locks are released when the unit of work ends.
	assert.False(t, mr.Exists("steelworks:lot:1"))
}

func TestRedisLocker_HeldLockFailsUnitOfWork(t *testing.T) {
	mr := redisServer(t)
	locker := NewRedisLocker(redisClient(t, mr), 5*time.Second,
		WithRetryStrategy(redislock.LinearBackoff(5*time.Millisecond)))
	e, s := setupEngine(t, WithLocker(locker))
	createLot(t, s, 1)
	insert(t, s, prod(1))
	before := lot.NewCompleteness(1, lot.Flags{Production: true})

	// Another process holds lot 1.
	other := NewRedisLocker(redisClient(t, mr), 5*time.Second)
	unlock, err := other.LockLot(context.Background(), 1)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = e.Recompute(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsLockError(err), "got %v", err)

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.InsertRecord(ctx, ship(1))
		return err
	})
	require.Error(t, err)
	assert.True(t, IsLockError(err), "got %v", err)

	rec, found, err := s.GetCompleteness(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, before, rec)
	rows, err := s.ListRecords(context.Background(), lot.StreamShipping, 1)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
