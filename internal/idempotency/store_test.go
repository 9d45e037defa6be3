package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memQueries mimics the idempotency_keys table.
type memQueries struct {
	mu   sync.Mutex
	rows map[string]repository.IdempotencyKey
	gets int
}

func newMemQueries() *memQueries {
	return &memQueries{rows: make(map[string]repository.IdempotencyKey)}
}

func (m *memQueries) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	row, ok := m.rows[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memQueries) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[arg.IdempotencyKey]; ok {
		return "", pgx.ErrNoRows
	}
	m.rows[arg.IdempotencyKey] = repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
		CreatedAt:      repository.ToPgTimestamptz(time.Now()),
	}
	return arg.IdempotencyKey, nil
}

func (m *memQueries) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = arg.ResponseBody
	row.ContentType = arg.ContentType
	row.InProgress = false
	m.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (m *memQueries) ReleaseIdempotencyKey(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[key]; ok && row.InProgress {
		delete(m.rows, key)
		return 1, nil
	}
	return 0, nil
}

func (m *memQueries) DeleteExpiredIdempotencyKeys(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, row := range m.rows {
		if !row.InProgress && row.CreatedAt.Time.Before(before.Time) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func newTestStore(t *testing.T) (*Store, *memQueries, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := newMemQueries()
	return NewStore(client, q, time.Hour), q, mr
}

func TestStoreReserveFinalizeReplay(t *testing.T) {
	store, q, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "k1", "hash-a")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Reserve(ctx, "k1", "hash-a", "POST", "/v1/stores/s/payouts")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Reserve(ctx, "k1", "hash-a", "POST", "/v1/stores/s/payouts")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Lookup(ctx, "k1", "hash-a")
	require.ErrorIs(t, err, ErrInProgress)

	rec, err := store.Finalize(ctx, "k1", "hash-a", 201, []byte(`{"id":"p1"}`), "application/json")
	require.NoError(t, err)
	require.Equal(t, 201, rec.Status)
	require.True(t, mr.Exists("idempotency:k1"))

	gets := q.gets
	rec, err = store.Lookup(ctx, "k1", "hash-a")
	require.NoError(t, err)
	require.Equal(t, "redis", rec.ServedBy)
	require.Equal(t, []byte(`{"id":"p1"}`), rec.Body)
	require.Equal(t, gets, q.gets)

	_, err = store.Lookup(ctx, "k1", "hash-b")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreFallsBackToPostgres(t *testing.T) {
	store, _, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k2", "h", "POST", "/x")
	require.NoError(t, err)
	_, err = store.Finalize(ctx, "k2", "h", 200, []byte("ok"), "text/plain")
	require.NoError(t, err)

	mr.FlushAll()
	rec, err := store.Lookup(ctx, "k2", "h")
	require.NoError(t, err)
	require.Equal(t, "postgres", rec.ServedBy)
	require.True(t, mr.Exists("idempotency:k2"))

	require.NoError(t, mr.Set("idempotency:k2", "not json"))
	rec, err = store.Lookup(ctx, "k2", "h")
	require.NoError(t, err)
	require.Equal(t, "postgres", rec.ServedBy)
}

func TestStoreWithoutRedis(t *testing.T) {
	store := NewStore(nil, newMemQueries(), time.Hour)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "k3", "h", "POST", "/x")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = store.Finalize(ctx, "k3", "h", 202, nil, "application/json")
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "k3", "h")
	require.NoError(t, err)
	require.Equal(t, 202, rec.Status)
}

func TestStoreReleaseAllowsRetry(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "k4", "h", "POST", "/x")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Release(ctx, "k4"))

	ok, err = store.Reserve(ctx, "k4", "h", "POST", "/x")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStoreWaitForCompletion(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k5", "h", "POST", "/x")
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_, _ = store.Finalize(context.Background(), "k5", "h", 201, []byte("done"), "text/plain")
	}()

	rec, err := store.WaitForCompletion(ctx, "k5", "h")
	require.NoError(t, err)
	require.Equal(t, []byte("done"), rec.Body)

	_, err = store.Reserve(ctx, "k6", "h", "POST", "/x")
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
	defer cancel()
	_, err = store.WaitForCompletion(short, "k6", "h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStorePurge(t *testing.T) {
	store, q, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "old", "h", "POST", "/x")
	require.NoError(t, err)
	_, err = store.Finalize(ctx, "old", "h", 200, nil, "application/json")
	require.NoError(t, err)
	_, err = store.Reserve(ctx, "running", "h", "POST", "/x")
	require.NoError(t, err)

	n, err := store.Purge(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Contains(t, q.rows, "running")
}

func TestScopedKey(t *testing.T) {
	require.Equal(t, "abc", ScopedKey("", "abc"))
	require.Equal(t, "user-1:abc", ScopedKey("user-1", "abc"))
}
