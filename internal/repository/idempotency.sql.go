package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const idempotencyKeyColumns = `idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress, created_at, updated_at`

const getIdempotencyKey = `-- name: GetIdempotencyKey :one
SELECT ` + idempotencyKeyColumns + ` FROM idempotency_keys WHERE idempotency_key = $1`

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error) {
	row := q.db.QueryRow(ctx, getIdempotencyKey, key)
	var i IdempotencyKey
	err := row.Scan(
		&i.IdempotencyKey,
		&i.RequestHash,
		&i.Method,
		&i.Path,
		&i.ResponseStatus,
		&i.ResponseBody,
		&i.ContentType,
		&i.InProgress,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const reserveIdempotencyKey = `-- name: ReserveIdempotencyKey :one
INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path)
VALUES ($1, $2, $3, $4)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING idempotency_key`

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string `json:"idempotency_key"`
	RequestHash    string `json:"request_hash"`
	Method         string `json:"method"`
	Path           string `json:"path"`
}

// ReserveIdempotencyKey returns pgx.ErrNoRows when the key is already taken.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (string, error) {
	var key string
	err := q.db.QueryRow(ctx, reserveIdempotencyKey, arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path).Scan(&key)
	return key, err
}

const finalizeIdempotencyKey = `-- name: FinalizeIdempotencyKey :one
UPDATE idempotency_keys
SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE, updated_at = NOW()
WHERE idempotency_key = $4 AND request_hash = $5
RETURNING ` + idempotencyKeyColumns

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32  `json:"response_status"`
	ResponseBody   []byte `json:"response_body"`
	ContentType    string `json:"content_type"`
	IdempotencyKey string `json:"idempotency_key"`
	RequestHash    string `json:"request_hash"`
}

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	row := q.db.QueryRow(ctx, finalizeIdempotencyKey,
		arg.ResponseStatus,
		arg.ResponseBody,
		arg.ContentType,
		arg.IdempotencyKey,
		arg.RequestHash,
	)
	var i IdempotencyKey
	err := row.Scan(
		&i.IdempotencyKey,
		&i.RequestHash,
		&i.Method,
		&i.Path,
		&i.ResponseStatus,
		&i.ResponseBody,
		&i.ContentType,
		&i.InProgress,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const releaseIdempotencyKey = `-- name: ReleaseIdempotencyKey :execrows
DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND in_progress`

// ReleaseIdempotencyKey frees a reservation whose request failed server-side.
func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, key string) (int64, error) {
	result, err := q.db.Exec(ctx, releaseIdempotencyKey, key)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteExpiredIdempotencyKeys = `-- name: DeleteExpiredIdempotencyKeys :execrows
DELETE FROM idempotency_keys WHERE created_at < $1 AND NOT in_progress`

func (q *Queries) DeleteExpiredIdempotencyKeys(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteExpiredIdempotencyKeys, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
