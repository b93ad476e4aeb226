package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxbridge/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "test:lock:"}, mr
}

func TestTryWithLockIsNotReentrant(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	var inner error
	err := locker.TryWithLock(ctx, "order-1", time.Second, func(ctx context.Context) error {
		require.True(t, mr.Exists("test:lock:order-1"))
		inner = locker.TryWithLock(ctx, "order-1", time.Second, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, inner, lock.ErrHeld)
	require.False(t, mr.Exists("test:lock:order-1"), "lock released after fn")
}

func TestTryWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.TryWithLock(context.Background(), "order-2", time.Second, func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("test:lock:order-2"))
}

func TestTryWithLockKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("test:lock:order-3", "someone-else"))

	err := locker.TryWithLock(context.Background(), "order-3", time.Second, func(context.Context) error {
		return nil
	})
	require.ErrorIs(t, err, lock.ErrHeld)
	got, err := mr.Get("test:lock:order-3")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestTryWithLockIndependentKeys(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	ran := false
	err := locker.TryWithLock(ctx, "a", time.Second, func(ctx context.Context) error {
		return locker.TryWithLock(ctx, "b", time.Second, func(context.Context) error {
			ran = true
			return nil
		})
	})
	require.NoError(t, err)
	require.True(t, ran)
}
