package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const redisKeyPrefix = "idempotency"

// Record is a stored response for a completed request.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Queries is the subset of repository queries the store needs.
type Queries interface {
	GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (string, error)
	FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) (int64, error)
	DeleteExpiredIdempotencyKeys(ctx context.Context, before pgtype.Timestamptz) (int64, error)
}

// Store keeps request outcomes in Postgres, which is authoritative, and
// caches finished ones in redis for the TTL.
type Store struct {
	redis   redis.Cmdable
	queries Queries
	ttl     time.Duration
}

func NewStore(redis redis.Cmdable, queries Queries, ttl time.Duration) *Store {
	return &Store{redis: redis, queries: queries, ttl: ttl}
}

// ScopedKey namespaces a client key by caller so two sellers may reuse the
// same header value.
func ScopedKey(subject, key string) string {
	if subject == "" {
		return key
	}
	return subject + ":" + key
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

// Lookup returns the stored response for key. It fails with ErrHashMismatch
// when the key was used for a different request and ErrInProgress while the
// first request is still running.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.cached(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.queries.GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}
	rec := fromRow(row)
	s.cache(ctx, rec)
	return &rec, nil
}

// Reserve claims key for a new request. It reports false when another
// request already holds it.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := s.queries.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("reserve idempotency key: %w", err)
}

// Finalize stores the response of a reserved request.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := fromRow(row)
	s.cache(ctx, rec)
	return &rec, nil
}

// Release drops a reservation whose request failed server-side so the client
// can retry with the same key.
func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.queries.ReleaseIdempotencyKey(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Purge deletes finished keys older than the TTL.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.queries.DeleteExpiredIdempotencyKeys(ctx, repository.ToPgTimestamptz(now.Add(-s.ttl)))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return n, nil
}

// WaitForCompletion polls until the request holding key finishes.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Store) cached(ctx context.Context, key string) (*Record, bool) {
	if s.redis == nil {
		return nil, false
	}
	val, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(val, &env); err != nil {
		zap.L().Warn("discarding malformed idempotency cache entry", zap.Error(err), zap.String("key", key))
		return nil, false
	}
	return &Record{
		Key:         env.Key,
		RequestHash: env.Hash,
		Status:      env.Status,
		Body:        env.Body,
		ContentType: env.ContentType,
		ServedBy:    "redis",
	}, true
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func fromRow(row repository.IdempotencyKey) Record {
	return Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    "postgres",
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
