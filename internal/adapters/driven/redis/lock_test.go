package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialconnect/internal/core/domain"
)

func newTestLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLock(client), mr
}

func TestLock_TryLock_Exclusive(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	first, err := lock.TryLock(ctx, "sweep", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Not reentrant, even for the same instance.
	second, err := lock.TryLock(ctx, "sweep", 10*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second)

	other, err := lock.TryLock(ctx, "other", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, other, "names are independent")

	require.NoError(t, first.Release(ctx))
	again, err := lock.TryLock(ctx, "sweep", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestLock_ReleaseIsIdempotent(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	lease, err := lock.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists(lockPrefix+"sweep"))
	assert.ErrorIs(t, lease.Refresh(ctx, time.Minute), domain.ErrLockLost)
}

func TestLock_ExpiredLeaseDoesNotReleaseSuccessor(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	stale, err := lock.TryLock(ctx, "sweep", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	current, err := lock.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists(lockPrefix+"sweep"), "successor's key survives a stale release")
	assert.ErrorIs(t, stale.Refresh(ctx, time.Minute), domain.ErrLockLost)
	assert.NoError(t, current.Refresh(ctx, time.Minute))
}

func TestLock_RefreshKeepsLeaseAlive(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	lease, err := lock.TryLock(ctx, "sweep", 3*time.Second)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		mr.FastForward(2 * time.Second)
		require.NoError(t, lease.Refresh(ctx, 3*time.Second), "refresh %d", i)
	}

	rival, err := lock.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, rival, "lease outlived its original ttl")
}

func TestLock_RefreshAfterTakeover(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	lease, err := lock.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	mr.Set(lockPrefix+"sweep", "someone-else")
	assert.ErrorIs(t, lease.Refresh(ctx, time.Minute), domain.ErrLockLost)

	require.NoError(t, lease.Release(ctx))
	got, err := mr.Get(lockPrefix + "sweep")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLock_KeyNamespace(t *testing.T) {
	lock, mr := newTestLock(t)

	_, err := lock.TryLock(context.Background(), "token-refresh-sweep", time.Minute)
	require.NoError(t, err)

	owner, err := mr.Get("socialconnect:lock:token-refresh-sweep")
	require.NoError(t, err)
	assert.Contains(t, owner, lock.instance+":")
	assert.Greater(t, mr.TTL("socialconnect:lock:token-refresh-sweep"), time.Duration(0))
}

func TestLock_Ping(t *testing.T) {
	lock, mr := newTestLock(t)
	assert.NoError(t, lock.Ping(context.Background()))

	mr.Close()
	assert.Error(t, lock.Ping(context.Background()))
}
