package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const sellerBalanceColumns = `store_id, currency, available_micros, pending_micros, reserved_micros, last_payout_at, last_payout_micros, created_at, updated_at`

func scanSellerBalance(row pgx.Row) (SellerBalance, error) {
	var i SellerBalance
	err := row.Scan(
		&i.StoreID,
		&i.Currency,
		&i.AvailableMicros,
		&i.PendingMicros,
		&i.ReservedMicros,
		&i.LastPayoutAt,
		&i.LastPayoutMicros,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

type SellerBalanceKey struct {
	StoreID  pgtype.UUID `json:"store_id"`
	Currency string      `json:"currency"`
}

const ensureSellerBalance = `-- name: EnsureSellerBalance :exec
INSERT INTO seller_balances (store_id, currency)
VALUES ($1, $2)
ON CONFLICT (store_id, currency) DO NOTHING`

func (q *Queries) EnsureSellerBalance(ctx context.Context, arg SellerBalanceKey) error {
	_, err := q.db.Exec(ctx, ensureSellerBalance, arg.StoreID, arg.Currency)
	return err
}

const getSellerBalance = `-- name: GetSellerBalance :one
SELECT ` + sellerBalanceColumns + ` FROM seller_balances WHERE store_id = $1 AND currency = $2`

func (q *Queries) GetSellerBalance(ctx context.Context, arg SellerBalanceKey) (SellerBalance, error) {
	return scanSellerBalance(q.db.QueryRow(ctx, getSellerBalance, arg.StoreID, arg.Currency))
}

const getSellerBalanceForUpdate = `-- name: GetSellerBalanceForUpdate :one
SELECT ` + sellerBalanceColumns + ` FROM seller_balances WHERE store_id = $1 AND currency = $2 FOR UPDATE`

func (q *Queries) GetSellerBalanceForUpdate(ctx context.Context, arg SellerBalanceKey) (SellerBalance, error) {
	return scanSellerBalance(q.db.QueryRow(ctx, getSellerBalanceForUpdate, arg.StoreID, arg.Currency))
}

const listSellerBalancesByStore = `-- name: ListSellerBalancesByStore :many
SELECT ` + sellerBalanceColumns + ` FROM seller_balances WHERE store_id = $1 ORDER BY currency`

func (q *Queries) ListSellerBalancesByStore(ctx context.Context, storeID pgtype.UUID) ([]SellerBalance, error) {
	rows, err := q.db.Query(ctx, listSellerBalancesByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SellerBalance
	for rows.Next() {
		i, err := scanSellerBalance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const applyBalanceDelta = `-- name: ApplyBalanceDelta :execrows
UPDATE seller_balances
SET available_micros = available_micros + $3,
    pending_micros = pending_micros + $4,
    reserved_micros = reserved_micros + $5,
    updated_at = NOW()
WHERE store_id = $1 AND currency = $2`

type ApplyBalanceDeltaParams struct {
	StoreID        pgtype.UUID `json:"store_id"`
	Currency       string      `json:"currency"`
	AvailableDelta int64       `json:"available_delta"`
	PendingDelta   int64       `json:"pending_delta"`
	ReservedDelta  int64       `json:"reserved_delta"`
}

func (q *Queries) ApplyBalanceDelta(ctx context.Context, arg ApplyBalanceDeltaParams) (int64, error) {
	result, err := q.db.Exec(ctx, applyBalanceDelta,
		arg.StoreID,
		arg.Currency,
		arg.AvailableDelta,
		arg.PendingDelta,
		arg.ReservedDelta,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const recordLastPayout = `-- name: RecordLastPayout :execrows
UPDATE seller_balances
SET last_payout_at = $3, last_payout_micros = $4, updated_at = NOW()
WHERE store_id = $1 AND currency = $2`

type RecordLastPayoutParams struct {
	StoreID          pgtype.UUID        `json:"store_id"`
	Currency         string             `json:"currency"`
	LastPayoutAt     pgtype.Timestamptz `json:"last_payout_at"`
	LastPayoutMicros int64              `json:"last_payout_micros"`
}

func (q *Queries) RecordLastPayout(ctx context.Context, arg RecordLastPayoutParams) (int64, error) {
	result, err := q.db.Exec(ctx, recordLastPayout, arg.StoreID, arg.Currency, arg.LastPayoutAt, arg.LastPayoutMicros)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getLatestPayoutAt = `-- name: GetLatestPayoutAt :one
SELECT MAX(last_payout_at) FROM seller_balances WHERE store_id = $1`

func (q *Queries) GetLatestPayoutAt(ctx context.Context, storeID pgtype.UUID) (pgtype.Timestamptz, error) {
	var at pgtype.Timestamptz
	err := q.db.QueryRow(ctx, getLatestPayoutAt, storeID).Scan(&at)
	return at, err
}
