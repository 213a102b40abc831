package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testLockKey = "sweep:lock"

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop())

	ctx := context.Background()

	held, err := locker.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, locker.Release(ctx, testLockKey))

	held, err = locker.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, held, "lock must be reacquirable after release")
}

func TestRedisLocker_ContentionReturnsFalse(t *testing.T) {
	client := setupTestRedis(t)
	first := NewRedisLocker(client, zap.NewNop())
	second := NewRedisLocker(client, zap.NewNop())

	ctx := context.Background()

	held, err := first.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	require.True(t, held)

	held, _ = second.Acquire(ctx, testLockKey, 5*time.Second)
	assert.False(t, held)
}

func TestRedisLocker_ReleaseNotOwnedIsNoop(t *testing.T) {
	client := setupTestRedis(t)
	owner := NewRedisLocker(client, zap.NewNop())
	other := NewRedisLocker(client, zap.NewNop())

	ctx := context.Background()

	held, err := owner.Acquire(ctx, testLockKey, 5*time.Second)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, other.Release(ctx, testLockKey))

	// The lock is still held: the non-owner's release must not have freed it.
	held, _ = other.Acquire(ctx, testLockKey, 5*time.Second)
	assert.False(t, held)

	require.NoError(t, owner.Release(ctx, testLockKey))
}

func TestRedisLocker_ExactlyOneWinner(t *testing.T) {
	client := setupTestRedis(t)

	const instances = 5
	results := make(chan bool, instances)
	ctx := context.Background()

	for i := 0; i < instances; i++ {
		go func() {
			locker := NewRedisLocker(client, zap.NewNop())
			held, _ := locker.Acquire(ctx, testLockKey, 2*time.Second)
			results <- held
		}()
	}

	winners := 0
	for i := 0; i < instances; i++ {
		if <-results {
			winners++
		}
	}

	assert.Equal(t, 1, winners)
}

func TestRedisLocker_CanceledContext(t *testing.T) {
	client := setupTestRedis(t)
	locker := NewRedisLocker(client, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	held, err := locker.Acquire(ctx, testLockKey, 5*time.Second)
	assert.Error(t, err)
	assert.False(t, held)
}
