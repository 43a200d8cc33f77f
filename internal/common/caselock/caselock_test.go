package caselock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/errors"
)

func setupLocker(t *testing.T) (*miniredis.Miniredis, *Locker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, New(client, Options{
		TTL:           time.Second,
		WaitTimeout:   50 * time.Millisecond,
		RetryInterval: 5 * time.Millisecond,
	})
}

func TestLocker_AcquireRelease(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("caselock:case-1"))

	_, err = locker.Acquire(ctx, "case-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeCaseLockTimeout))

	// other cases are independent
	other, err := locker.Acquire(ctx, "case-2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("caselock:case-1"))

	again, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)

	// the stale holder must not remove the new holder's key
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("caselock:case-1"))

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("caselock:case-1"))
}

func TestLocker_WaitsForRelease(t *testing.T) {
	_, locker := setupLocker(t)
	locker.opts.WaitTimeout = time.Second
	ctx := context.Background()

	first, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	second, err := locker.Acquire(ctx, "case-1")
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLocker_RedisFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := New(client, Options{TTL: time.Minute})
	locker.newToken = func() string { return "token-1" }

	mock.ExpectSetNX("caselock:case-1", "token-1", time.Minute).SetErr(fmt.Errorf("connection refused"))

	_, err := locker.Acquire(context.Background(), "case-1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCaseLockFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
