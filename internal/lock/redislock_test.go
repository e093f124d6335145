package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/lock"
)

func testLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
}

func TestTryRejectsConcurrentHolder(t *testing.T) {
	locker := testLocker(t)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- locker.Try(context.Background(), "checkout:u1", time.Second, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	err := locker.Try(context.Background(), "checkout:u1", time.Second, func(context.Context) error {
		t.Error("second acquirer must not run")
		return nil
	})
	require.ErrorIs(t, err, lock.ErrHeld)

	close(release)
	require.NoError(t, <-done)

	// Released lock is acquirable again.
	require.NoError(t, locker.Try(context.Background(), "checkout:u1", time.Second, func(context.Context) error {
		return nil
	}))
}

func TestWithLockWaitsForRelease(t *testing.T) {
	locker := testLocker(t)

	inside := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "job", time.Second, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	acquired := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "job", time.Second, func(context.Context) error {
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
		t.Fatal("second holder ran before release")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestWithLockReleasedOnError(t *testing.T) {
	locker := testLocker(t)

	wantErr := context.DeadlineExceeded
	err := locker.WithLock(context.Background(), "job", time.Second, func(context.Context) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	require.NoError(t, locker.Try(context.Background(), "job", time.Second, func(context.Context) error {
		return nil
	}))
}
