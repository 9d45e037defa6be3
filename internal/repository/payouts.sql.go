package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const payoutColumns = `id, store_id, currency, amount_micros, status, rail, reference_id, external_transfer_ref, requested_by, requested_at, processed_at, completed_at, failure_reason, updated_at`

func scanPayout(row pgx.Row) (Payout, error) {
	var i Payout
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Currency,
		&i.AmountMicros,
		&i.Status,
		&i.Rail,
		&i.ReferenceID,
		&i.ExternalTransferRef,
		&i.RequestedBy,
		&i.RequestedAt,
		&i.ProcessedAt,
		&i.CompletedAt,
		&i.FailureReason,
		&i.UpdatedAt,
	)
	return i, err
}

func collectPayouts(rows pgx.Rows) ([]Payout, error) {
	defer rows.Close()
	var items []Payout
	for rows.Next() {
		i, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertPayout = `-- name: InsertPayout :one
INSERT INTO payouts (id, store_id, currency, amount_micros, status, rail, reference_id, requested_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + payoutColumns

type InsertPayoutParams struct {
	ID           pgtype.UUID `json:"id"`
	StoreID      pgtype.UUID `json:"store_id"`
	Currency     string      `json:"currency"`
	AmountMicros int64       `json:"amount_micros"`
	Status       string      `json:"status"`
	Rail         string      `json:"rail"`
	ReferenceID  string      `json:"reference_id"`
	RequestedBy  string      `json:"requested_by"`
}

func (q *Queries) InsertPayout(ctx context.Context, arg InsertPayoutParams) (Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, insertPayout,
		arg.ID,
		arg.StoreID,
		arg.Currency,
		arg.AmountMicros,
		arg.Status,
		arg.Rail,
		arg.ReferenceID,
		arg.RequestedBy,
	))
}

const getPayout = `-- name: GetPayout :one
SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

func (q *Queries) GetPayout(ctx context.Context, id pgtype.UUID) (Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, getPayout, id))
}

const getPayoutForUpdate = `-- name: GetPayoutForUpdate :one
SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1 FOR UPDATE`

func (q *Queries) GetPayoutForUpdate(ctx context.Context, id pgtype.UUID) (Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, getPayoutForUpdate, id))
}

const getPayoutByReference = `-- name: GetPayoutByReference :one
SELECT ` + payoutColumns + ` FROM payouts WHERE store_id = $1 AND reference_id = $2`

func (q *Queries) GetPayoutByReference(ctx context.Context, storeID pgtype.UUID, referenceID string) (Payout, error) {
	return scanPayout(q.db.QueryRow(ctx, getPayoutByReference, storeID, referenceID))
}

const updatePayoutStatus = `-- name: UpdatePayoutStatus :execrows
UPDATE payouts
SET status = $2,
    external_transfer_ref = COALESCE($3, external_transfer_ref),
    failure_reason = COALESCE($4, failure_reason),
    processed_at = CASE WHEN $2 = 'processing' THEN NOW() ELSE processed_at END,
    completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_at END,
    updated_at = NOW()
WHERE id = $1`

type UpdatePayoutStatusParams struct {
	ID                  pgtype.UUID `json:"id"`
	Status              string      `json:"status"`
	ExternalTransferRef *string     `json:"external_transfer_ref"`
	FailureReason       *string     `json:"failure_reason"`
}

func (q *Queries) UpdatePayoutStatus(ctx context.Context, arg UpdatePayoutStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updatePayoutStatus, arg.ID, arg.Status, arg.ExternalTransferRef, arg.FailureReason)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const touchProcessingPayout = `-- name: TouchProcessingPayout :execrows
UPDATE payouts SET processed_at = NOW(), updated_at = NOW() WHERE id = $1 AND status = 'processing'`

func (q *Queries) TouchProcessingPayout(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, touchProcessingPayout, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listPayoutsByStore = `-- name: ListPayoutsByStore :many
SELECT ` + payoutColumns + `
FROM payouts
WHERE store_id = $1
ORDER BY requested_at DESC, id DESC
LIMIT $2 OFFSET $3`

type ListPayoutsByStoreParams struct {
	StoreID pgtype.UUID `json:"store_id"`
	Limit   int32       `json:"limit"`
	Offset  int32       `json:"offset"`
}

func (q *Queries) ListPayoutsByStore(ctx context.Context, arg ListPayoutsByStoreParams) ([]Payout, error) {
	rows, err := q.db.Query(ctx, listPayoutsByStore, arg.StoreID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

const listPendingPayoutIDs = `-- name: ListPendingPayoutIDs :many
SELECT id FROM payouts
WHERE status = 'pending' AND rail = ANY($1::text[])
ORDER BY requested_at
LIMIT $2
FOR UPDATE SKIP LOCKED`

// ListPendingPayoutIDs skips rows another worker has locked.
func (q *Queries) ListPendingPayoutIDs(ctx context.Context, rails []string, limit int32) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, listPendingPayoutIDs, rails, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const listStaleProcessingPayouts = `-- name: ListStaleProcessingPayouts :many
SELECT ` + payoutColumns + `
FROM payouts
WHERE status = 'processing' AND processed_at < $1
ORDER BY processed_at
LIMIT $2
FOR UPDATE SKIP LOCKED`

func (q *Queries) ListStaleProcessingPayouts(ctx context.Context, cutoff pgtype.Timestamptz, limit int32) ([]Payout, error) {
	rows, err := q.db.Query(ctx, listStaleProcessingPayouts, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

const countPayoutsByStatus = `-- name: CountPayoutsByStatus :one
SELECT COUNT(*) FROM payouts WHERE status = $1`

func (q *Queries) CountPayoutsByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countPayoutsByStatus, status).Scan(&count)
	return count, err
}
