package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerHoldColumns = `id, store_id, currency, order_id, kind, status, amount_micros, external_ref, opened_at, resolved_at, applied_at`

func scanLedgerHold(row pgx.Row) (LedgerHold, error) {
	var i LedgerHold
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Currency,
		&i.OrderID,
		&i.Kind,
		&i.Status,
		&i.AmountMicros,
		&i.ExternalRef,
		&i.OpenedAt,
		&i.ResolvedAt,
		&i.AppliedAt,
	)
	return i, err
}

const insertLedgerHold = `-- name: InsertLedgerHold :one
INSERT INTO ledger_holds (id, store_id, currency, order_id, kind, amount_micros, external_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT ON CONSTRAINT ledger_holds_external_ref_key DO NOTHING
RETURNING ` + ledgerHoldColumns

type InsertLedgerHoldParams struct {
	ID           pgtype.UUID `json:"id"`
	StoreID      pgtype.UUID `json:"store_id"`
	Currency     string      `json:"currency"`
	OrderID      pgtype.UUID `json:"order_id"`
	Kind         string      `json:"kind"`
	AmountMicros int64       `json:"amount_micros"`
	ExternalRef  string      `json:"external_ref"`
}

// InsertLedgerHold returns pgx.ErrNoRows when the hold was already opened.
func (q *Queries) InsertLedgerHold(ctx context.Context, arg InsertLedgerHoldParams) (LedgerHold, error) {
	return scanLedgerHold(q.db.QueryRow(ctx, insertLedgerHold,
		arg.ID,
		arg.StoreID,
		arg.Currency,
		arg.OrderID,
		arg.Kind,
		arg.AmountMicros,
		arg.ExternalRef,
	))
}

const getLedgerHoldByExternalRefForUpdate = `-- name: GetLedgerHoldByExternalRefForUpdate :one
SELECT ` + ledgerHoldColumns + `
FROM ledger_holds
WHERE store_id = $1 AND kind = $2 AND external_ref = $3
FOR UPDATE`

type GetLedgerHoldByExternalRefParams struct {
	StoreID     pgtype.UUID `json:"store_id"`
	Kind        string      `json:"kind"`
	ExternalRef string      `json:"external_ref"`
}

func (q *Queries) GetLedgerHoldByExternalRefForUpdate(ctx context.Context, arg GetLedgerHoldByExternalRefParams) (LedgerHold, error) {
	return scanLedgerHold(q.db.QueryRow(ctx, getLedgerHoldByExternalRefForUpdate, arg.StoreID, arg.Kind, arg.ExternalRef))
}

const resolveLedgerHold = `-- name: ResolveLedgerHold :execrows
UPDATE ledger_holds
SET status = $2, resolved_at = NOW()
WHERE id = $1 AND status = 'open'`

func (q *Queries) ResolveLedgerHold(ctx context.Context, id pgtype.UUID, status string) (int64, error) {
	result, err := q.db.Exec(ctx, resolveLedgerHold, id, status)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listUnappliedLostHolds = `-- name: ListUnappliedLostHolds :many
SELECT ` + ledgerHoldColumns + `
FROM ledger_holds
WHERE status = 'lost' AND applied_at IS NULL
ORDER BY resolved_at
LIMIT $1`

func (q *Queries) ListUnappliedLostHolds(ctx context.Context, limit int32) ([]LedgerHold, error) {
	rows, err := q.db.Query(ctx, listUnappliedLostHolds, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerHold
	for rows.Next() {
		i, err := scanLedgerHold(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getLedgerHoldForUpdate = `-- name: GetLedgerHoldForUpdate :one
SELECT ` + ledgerHoldColumns + ` FROM ledger_holds WHERE id = $1 FOR UPDATE`

func (q *Queries) GetLedgerHoldForUpdate(ctx context.Context, id pgtype.UUID) (LedgerHold, error) {
	return scanLedgerHold(q.db.QueryRow(ctx, getLedgerHoldForUpdate, id))
}

const markLedgerHoldApplied = `-- name: MarkLedgerHoldApplied :execrows
UPDATE ledger_holds SET applied_at = NOW() WHERE id = $1 AND applied_at IS NULL`

func (q *Queries) MarkLedgerHoldApplied(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markLedgerHoldApplied, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countOpenHolds = `-- name: CountOpenHolds :one
SELECT COUNT(*) FROM ledger_holds WHERE status = 'open'`

func (q *Queries) CountOpenHolds(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOpenHolds).Scan(&count)
	return count, err
}
