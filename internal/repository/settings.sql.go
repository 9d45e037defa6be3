package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const payoutSettingColumns = `store_id, method, schedule, minimum_amount_micros, payout_day_of_week, payout_day_of_month, next_payout_at, created_at, updated_at`

func scanPayoutSetting(row pgx.Row) (PayoutSetting, error) {
	var i PayoutSetting
	err := row.Scan(
		&i.StoreID,
		&i.Method,
		&i.Schedule,
		&i.MinimumAmountMicros,
		&i.PayoutDayOfWeek,
		&i.PayoutDayOfMonth,
		&i.NextPayoutAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getPayoutSettings = `-- name: GetPayoutSettings :one
SELECT ` + payoutSettingColumns + ` FROM payout_settings WHERE store_id = $1`

func (q *Queries) GetPayoutSettings(ctx context.Context, storeID pgtype.UUID) (PayoutSetting, error) {
	return scanPayoutSetting(q.db.QueryRow(ctx, getPayoutSettings, storeID))
}

const upsertPayoutSettings = `-- name: UpsertPayoutSettings :one
INSERT INTO payout_settings (store_id, method, schedule, minimum_amount_micros, payout_day_of_week, payout_day_of_month, next_payout_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (store_id) DO UPDATE
SET method = EXCLUDED.method,
    schedule = EXCLUDED.schedule,
    minimum_amount_micros = EXCLUDED.minimum_amount_micros,
    payout_day_of_week = EXCLUDED.payout_day_of_week,
    payout_day_of_month = EXCLUDED.payout_day_of_month,
    next_payout_at = EXCLUDED.next_payout_at,
    updated_at = NOW()
RETURNING ` + payoutSettingColumns

type UpsertPayoutSettingsParams struct {
	StoreID             pgtype.UUID        `json:"store_id"`
	Method              string             `json:"method"`
	Schedule            string             `json:"schedule"`
	MinimumAmountMicros int64              `json:"minimum_amount_micros"`
	PayoutDayOfWeek     *int16             `json:"payout_day_of_week"`
	PayoutDayOfMonth    *int16             `json:"payout_day_of_month"`
	NextPayoutAt        pgtype.Timestamptz `json:"next_payout_at"`
}

func (q *Queries) UpsertPayoutSettings(ctx context.Context, arg UpsertPayoutSettingsParams) (PayoutSetting, error) {
	return scanPayoutSetting(q.db.QueryRow(ctx, upsertPayoutSettings,
		arg.StoreID,
		arg.Method,
		arg.Schedule,
		arg.MinimumAmountMicros,
		arg.PayoutDayOfWeek,
		arg.PayoutDayOfMonth,
		arg.NextPayoutAt,
	))
}

const updateNextPayoutAt = `-- name: UpdateNextPayoutAt :execrows
UPDATE payout_settings SET next_payout_at = $2, updated_at = NOW() WHERE store_id = $1`

func (q *Queries) UpdateNextPayoutAt(ctx context.Context, storeID pgtype.UUID, nextPayoutAt pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, updateNextPayoutAt, storeID, nextPayoutAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listDueAutomaticPayoutSettings = `-- name: ListDueAutomaticPayoutSettings :many
SELECT ` + payoutSettingColumns + `
FROM payout_settings
WHERE method = 'automatic' AND schedule <> 'none'
  AND (next_payout_at IS NULL OR next_payout_at <= $1)
ORDER BY next_payout_at NULLS FIRST
LIMIT $2`

func (q *Queries) ListDueAutomaticPayoutSettings(ctx context.Context, now pgtype.Timestamptz, limit int32) ([]PayoutSetting, error) {
	rows, err := q.db.Query(ctx, listDueAutomaticPayoutSettings, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PayoutSetting
	for rows.Next() {
		i, err := scanPayoutSetting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
