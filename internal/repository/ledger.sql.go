package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerEntryColumns = `id, store_id, currency, type, amount_micros, status, available_at, balance_after_micros, order_id, payout_id, external_ref, description, created_at, updated_at`

func scanLedgerEntry(row pgx.Row) (LedgerEntry, error) {
	var i LedgerEntry
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Currency,
		&i.Type,
		&i.AmountMicros,
		&i.Status,
		&i.AvailableAt,
		&i.BalanceAfterMicros,
		&i.OrderID,
		&i.PayoutID,
		&i.ExternalRef,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertLedgerEntry = `-- name: InsertLedgerEntry :one
INSERT INTO ledger_entries (
    id, store_id, currency, type, amount_micros, status, available_at,
    balance_after_micros, order_id, payout_id, external_ref, description
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT ON CONSTRAINT ledger_entries_external_ref_key DO NOTHING
RETURNING ` + ledgerEntryColumns

type InsertLedgerEntryParams struct {
	ID                 pgtype.UUID        `json:"id"`
	StoreID            pgtype.UUID        `json:"store_id"`
	Currency           string             `json:"currency"`
	Type               string             `json:"type"`
	AmountMicros       int64              `json:"amount_micros"`
	Status             string             `json:"status"`
	AvailableAt        pgtype.Timestamptz `json:"available_at"`
	BalanceAfterMicros int64              `json:"balance_after_micros"`
	OrderID            pgtype.UUID        `json:"order_id"`
	PayoutID           pgtype.UUID        `json:"payout_id"`
	ExternalRef        string             `json:"external_ref"`
	Description        string             `json:"description"`
}

// InsertLedgerEntry returns pgx.ErrNoRows when (store_id, type, external_ref) already exists.
func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, insertLedgerEntry,
		arg.ID,
		arg.StoreID,
		arg.Currency,
		arg.Type,
		arg.AmountMicros,
		arg.Status,
		arg.AvailableAt,
		arg.BalanceAfterMicros,
		arg.OrderID,
		arg.PayoutID,
		arg.ExternalRef,
		arg.Description,
	)
	return scanLedgerEntry(row)
}

const getLedgerEntry = `-- name: GetLedgerEntry :one
SELECT ` + ledgerEntryColumns + ` FROM ledger_entries WHERE id = $1`

func (q *Queries) GetLedgerEntry(ctx context.Context, id pgtype.UUID) (LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getLedgerEntry, id))
}

const getLedgerEntryByExternalRef = `-- name: GetLedgerEntryByExternalRef :one
SELECT ` + ledgerEntryColumns + `
FROM ledger_entries
WHERE store_id = $1 AND type = $2 AND external_ref = $3`

type GetLedgerEntryByExternalRefParams struct {
	StoreID     pgtype.UUID `json:"store_id"`
	Type        string      `json:"type"`
	ExternalRef string      `json:"external_ref"`
}

func (q *Queries) GetLedgerEntryByExternalRef(ctx context.Context, arg GetLedgerEntryByExternalRefParams) (LedgerEntry, error) {
	return scanLedgerEntry(q.db.QueryRow(ctx, getLedgerEntryByExternalRef, arg.StoreID, arg.Type, arg.ExternalRef))
}

const countLedgerEntriesByPayout = `-- name: CountLedgerEntriesByPayout :one
SELECT COUNT(*) FROM ledger_entries WHERE payout_id = $1`

func (q *Queries) CountLedgerEntriesByPayout(ctx context.Context, payoutID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countLedgerEntriesByPayout, payoutID).Scan(&count)
	return count, err
}

const listDueSettlementKeys = `-- name: ListDueSettlementKeys :many
SELECT DISTINCT store_id, currency
FROM ledger_entries
WHERE status = 'pending' AND available_at <= $1
ORDER BY store_id, currency
LIMIT $2`

type SettlementKey struct {
	StoreID  pgtype.UUID `json:"store_id"`
	Currency string      `json:"currency"`
}

func (q *Queries) ListDueSettlementKeys(ctx context.Context, now pgtype.Timestamptz, limit int32) ([]SettlementKey, error) {
	rows, err := q.db.Query(ctx, listDueSettlementKeys, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SettlementKey
	for rows.Next() {
		var i SettlementKey
		if err := rows.Scan(&i.StoreID, &i.Currency); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listDueEntriesForUpdate = `-- name: ListDueEntriesForUpdate :many
SELECT e.id, e.order_id, e.amount_micros,
    (SELECT h.kind FROM ledger_holds h
     WHERE h.store_id = e.store_id AND h.order_id = e.order_id AND h.status = 'open'
     ORDER BY h.opened_at LIMIT 1) AS hold_kind
FROM ledger_entries e
WHERE e.store_id = $1 AND e.currency = $2 AND e.status = 'pending' AND e.available_at <= $3
ORDER BY e.available_at, e.id
FOR UPDATE OF e`

type ListDueEntriesForUpdateParams struct {
	StoreID  pgtype.UUID        `json:"store_id"`
	Currency string             `json:"currency"`
	Now      pgtype.Timestamptz `json:"now"`
}

type DueEntry struct {
	ID           pgtype.UUID `json:"id"`
	OrderID      pgtype.UUID `json:"order_id"`
	AmountMicros int64       `json:"amount_micros"`
	HoldKind     *string     `json:"hold_kind"`
}

func (q *Queries) ListDueEntriesForUpdate(ctx context.Context, arg ListDueEntriesForUpdateParams) ([]DueEntry, error) {
	rows, err := q.db.Query(ctx, listDueEntriesForUpdate, arg.StoreID, arg.Currency, arg.Now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DueEntry
	for rows.Next() {
		var i DueEntry
		if err := rows.Scan(&i.ID, &i.OrderID, &i.AmountMicros, &i.HoldKind); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markEntriesAvailable = `-- name: MarkEntriesAvailable :execrows
UPDATE ledger_entries
SET status = 'available', updated_at = NOW()
WHERE id = ANY($1::uuid[]) AND status = 'pending'`

func (q *Queries) MarkEntriesAvailable(ctx context.Context, ids []pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markEntriesAvailable, ids)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const sumLedgerByStore = `-- name: SumLedgerByStore :many
SELECT currency,
    COALESCE(SUM(amount_micros) FILTER (WHERE status = 'available'), 0)::BIGINT AS available_micros,
    COALESCE(SUM(amount_micros) FILTER (WHERE status = 'pending'), 0)::BIGINT AS pending_micros
FROM ledger_entries
WHERE store_id = $1
GROUP BY currency
ORDER BY currency`

type LedgerSum struct {
	Currency        string `json:"currency"`
	AvailableMicros int64  `json:"available_micros"`
	PendingMicros   int64  `json:"pending_micros"`
}

func (q *Queries) SumLedgerByStore(ctx context.Context, storeID pgtype.UUID) ([]LedgerSum, error) {
	rows, err := q.db.Query(ctx, sumLedgerByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerSum
	for rows.Next() {
		var i LedgerSum
		if err := rows.Scan(&i.Currency, &i.AvailableMicros, &i.PendingMicros); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listBalanceDrift = `-- name: ListBalanceDrift :many
WITH sums AS (
    SELECT store_id, currency,
        COALESCE(SUM(amount_micros) FILTER (WHERE status = 'available'), 0)::BIGINT AS ledger_available,
        COALESCE(SUM(amount_micros) FILTER (WHERE status = 'pending'), 0)::BIGINT AS ledger_pending
    FROM ledger_entries
    GROUP BY store_id, currency
), open_payouts AS (
    SELECT store_id, currency, COALESCE(SUM(amount_micros), 0)::BIGINT AS open_micros
    FROM payouts
    WHERE status IN ('pending', 'processing')
    GROUP BY store_id, currency
)
SELECT b.store_id, b.currency,
    b.available_micros, b.pending_micros, b.reserved_micros,
    COALESCE(s.ledger_available, 0)::BIGINT,
    COALESCE(s.ledger_pending, 0)::BIGINT,
    COALESCE(o.open_micros, 0)::BIGINT
FROM seller_balances b
LEFT JOIN sums s ON s.store_id = b.store_id AND s.currency = b.currency
LEFT JOIN open_payouts o ON o.store_id = b.store_id AND o.currency = b.currency
WHERE b.available_micros <> COALESCE(s.ledger_available, 0)
   OR b.pending_micros <> COALESCE(s.ledger_pending, 0)
   OR b.reserved_micros <> COALESCE(o.open_micros, 0)
ORDER BY b.store_id, b.currency`

type BalanceDrift struct {
	StoreID               pgtype.UUID `json:"store_id"`
	Currency              string      `json:"currency"`
	AvailableMicros       int64       `json:"available_micros"`
	PendingMicros         int64       `json:"pending_micros"`
	ReservedMicros        int64       `json:"reserved_micros"`
	LedgerAvailableMicros int64       `json:"ledger_available_micros"`
	LedgerPendingMicros   int64       `json:"ledger_pending_micros"`
	OpenPayoutMicros      int64       `json:"open_payout_micros"`
}

func (q *Queries) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := q.db.Query(ctx, listBalanceDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BalanceDrift
	for rows.Next() {
		var i BalanceDrift
		if err := rows.Scan(
			&i.StoreID,
			&i.Currency,
			&i.AvailableMicros,
			&i.PendingMicros,
			&i.ReservedMicros,
			&i.LedgerAvailableMicros,
			&i.LedgerPendingMicros,
			&i.OpenPayoutMicros,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
