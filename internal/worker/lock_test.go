package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRunLockExcludesSecondHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	first := NewRunLock(client, "settlement:run", time.Minute)
	second := NewRunLock(client, "settlement:run", time.Minute)

	release, ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, mr.Exists(lockKeyPrefix+"settlement:run"))

	_, ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.False(t, mr.Exists(lockKeyPrefix+"settlement:run"))

	release, ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestRunLockReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	lock := NewRunLock(client, "auto-payout:run", time.Second)

	release, ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// The TTL lapses and another instance takes over.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(lockKeyPrefix+"auto-payout:run", "someone-else"))

	release()
	got, err := mr.Get(lockKeyPrefix + "auto-payout:run")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestRunLockWithoutRedis(t *testing.T) {
	release, ok, err := NewRunLock(nil, "x", time.Second).Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	release()

	var nilLock *RunLock
	_, ok, err = nilLock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoopRunOnceSkipsWhenLocked(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	var runs atomic.Int32
	l := newLoop("test", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	l.lock = NewRunLock(client, "test", time.Minute)

	release, ok, err := NewRunLock(client, "test", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.RunOnce(ctx))
	require.Zero(t, runs.Load())

	release()
	require.NoError(t, l.RunOnce(ctx))
	require.Equal(t, int32(1), runs.Load())
}

func TestLoopRunOnceReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	l := newLoop("test", time.Hour, func(ctx context.Context) error { return boom })
	require.ErrorIs(t, l.RunOnce(context.Background()), boom)
}

func TestLoopStartAndStop(t *testing.T) {
	var runs atomic.Int32
	l := newLoop("test", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	l.immediate = true

	stop := l.Run(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	l := newLoop("test", time.Hour, func(ctx context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
