package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ayo6706/seller-payouts/internal/idempotency"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type keyTable struct {
	mu   sync.Mutex
	rows map[string]repository.IdempotencyKey
}

func (k *keyTable) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return row, nil
}

func (k *keyTable) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.rows[arg.IdempotencyKey]; ok {
		return "", pgx.ErrNoRows
	}
	k.rows[arg.IdempotencyKey] = repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
		CreatedAt:      repository.ToPgTimestamptz(time.Now()),
	}
	return arg.IdempotencyKey, nil
}

func (k *keyTable) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	row, ok := k.rows[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = arg.ResponseBody
	row.ContentType = arg.ContentType
	row.InProgress = false
	k.rows[arg.IdempotencyKey] = row
	return row, nil
}

func (k *keyTable) ReleaseIdempotencyKey(ctx context.Context, key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if row, ok := k.rows[key]; ok && row.InProgress {
		delete(k.rows, key)
		return 1, nil
	}
	return 0, nil
}

func (k *keyTable) DeleteExpiredIdempotencyKeys(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	return 0, nil
}

type idempotencyHarness struct {
	handler http.Handler
	calls   atomic.Int32
	status  atomic.Int32
}

func newIdempotencyHarness(t *testing.T) *idempotencyHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := idempotency.NewStore(client, &keyTable{rows: make(map[string]repository.IdempotencyKey)}, time.Hour)

	h := &idempotencyHarness{}
	h.status.Store(http.StatusAccepted)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := h.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(h.status.Load()))
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
	h.handler = IdempotencyMiddleware(store, zap.NewNop())(next)
	return h
}

func (h *idempotencyHarness) do(userID, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/stores/s/payouts", strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), userContextKey, userID))
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func TestIdempotencyMiddlewareRequiresKey(t *testing.T) {
	h := newIdempotencyHarness(t)
	rr := h.do("u1", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "idempotency/missing-key")

	rr = h.do("u1", strings.Repeat("k", maxIdempotencyKeyLength+1), `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.EqualValues(t, 0, h.calls.Load())
}

func TestIdempotencyMiddlewareReplaysResponse(t *testing.T) {
	h := newIdempotencyHarness(t)

	first := h.do("u1", "key-1", `{"amount_micros":5}`)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get("X-Idempotent-Replay"))

	second := h.do("u1", "key-1", `{"amount_micros":5}`)
	require.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.NotEmpty(t, second.Header().Get("X-Idempotent-Replay"))
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestIdempotencyMiddlewareRejectsDifferentBody(t *testing.T) {
	h := newIdempotencyHarness(t)
	require.Equal(t, http.StatusAccepted, h.do("u1", "key-1", `{"amount_micros":5}`).Code)

	rr := h.do("u1", "key-1", `{"amount_micros":6}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "idempotency/key-conflict")
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestIdempotencyMiddlewareScopesKeysPerCaller(t *testing.T) {
	h := newIdempotencyHarness(t)
	require.Equal(t, http.StatusAccepted, h.do("u1", "shared", `{}`).Code)
	require.Equal(t, http.StatusAccepted, h.do("u2", "shared", `{}`).Code)
	assert.EqualValues(t, 2, h.calls.Load())
}

func TestIdempotencyMiddlewareReleasesOnServerError(t *testing.T) {
	h := newIdempotencyHarness(t)
	h.status.Store(http.StatusInternalServerError)
	require.Equal(t, http.StatusInternalServerError, h.do("u1", "retry-me", `{}`).Code)

	h.status.Store(http.StatusAccepted)
	rr := h.do("u1", "retry-me", `{}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.EqualValues(t, 2, h.calls.Load())
}

func TestIdempotencyMiddlewareKeepsClientErrors(t *testing.T) {
	h := newIdempotencyHarness(t)
	h.status.Store(http.StatusUnprocessableEntity)
	require.Equal(t, http.StatusUnprocessableEntity, h.do("u1", "bad", `{}`).Code)

	h.status.Store(http.StatusAccepted)
	rr := h.do("u1", "bad", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestIdempotencyMiddlewareSkipsReads(t *testing.T) {
	h := newIdempotencyHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/stores/s/payouts", nil)
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.EqualValues(t, 1, h.calls.Load())
}
