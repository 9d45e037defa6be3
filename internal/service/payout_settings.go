package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/ayo6706/seller-payouts/internal/schedule"
	"github.com/ayo6706/seller-payouts/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// PayoutSettingsService stores per-store payout preferences.
type PayoutSettingsService struct {
	store          QueryStore
	holdPeriodDays int
	now            func() time.Time
}

func NewPayoutSettingsService(store QueryStore, holdPeriodDays int) *PayoutSettingsService {
	return &PayoutSettingsService{store: store, holdPeriodDays: holdPeriodDays, now: time.Now}
}

// UpdatePayoutSettingsInput is the body of a settings update.
type UpdatePayoutSettingsInput struct {
	Method              string `json:"method" validate:"required,oneof=manual automatic"`
	Schedule            string `json:"schedule" validate:"required,oneof=daily weekly biweekly monthly none"`
	MinimumAmountMicros int64  `json:"minimum_amount_micros" validate:"gte=0"`
	PayoutDayOfWeek     *int   `json:"payout_day_of_week" validate:"omitempty,min=0,max=6"`
	PayoutDayOfMonth    *int   `json:"payout_day_of_month" validate:"omitempty,min=1,max=31"`
}

// Get returns the store's settings, or the manual/none defaults when the
// store never configured any. NextPayoutAt is never in the past.
func (s *PayoutSettingsService) Get(ctx context.Context, storeID uuid.UUID) (models.PayoutSettings, error) {
	queries := s.store.Queries()
	row, err := queries.GetPayoutSettings(ctx, repository.ToPgUUID(storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		row = repository.PayoutSetting{
			StoreID:  repository.ToPgUUID(storeID),
			Method:   string(domain.PayoutMethodManual),
			Schedule: string(schedule.None),
		}
	} else if err != nil {
		return models.PayoutSettings{}, fmt.Errorf("get payout settings: %w", err)
	}

	lastPayout, err := queries.GetLatestPayoutAt(ctx, row.StoreID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.PayoutSettings{}, fmt.Errorf("get latest payout: %w", err)
	}

	now := s.now()
	cached := repository.FromNullPgTimestamptz(row.NextPayoutAt)
	next := schedule.Fresh(cached, scheduleConfig(row), repository.FromNullPgTimestamptz(lastPayout), now)
	if row.CreatedAt.Valid && (cached == nil || !cached.Equal(next)) {
		if _, err := queries.UpdateNextPayoutAt(ctx, row.StoreID, repository.ToPgTimestamptz(next)); err != nil {
			zap.L().Warn("failed to persist refreshed next payout date", zap.Error(err), zap.String("store_id", storeID.String()))
		}
	}
	row.NextPayoutAt = repository.ToPgTimestamptz(next)
	return s.toModel(row), nil
}

// Update validates and stores new settings, recomputing the next payout date.
func (s *PayoutSettingsService) Update(ctx context.Context, storeID uuid.UUID, in UpdatePayoutSettingsInput) (models.PayoutSettings, error) {
	if err := validation.Struct(in); err != nil {
		return models.PayoutSettings{}, err
	}
	switch schedule.Schedule(in.Schedule) {
	case schedule.Weekly:
		if in.PayoutDayOfWeek == nil {
			return models.PayoutSettings{}, domain.NewValidationError("payout_day_of_week", "is required for weekly payouts")
		}
	case schedule.Monthly:
		if in.PayoutDayOfMonth == nil {
			return models.PayoutSettings{}, domain.NewValidationError("payout_day_of_month", "is required for monthly payouts")
		}
	}

	params := repository.UpsertPayoutSettingsParams{
		StoreID:             repository.ToPgUUID(storeID),
		Method:              in.Method,
		Schedule:            in.Schedule,
		MinimumAmountMicros: in.MinimumAmountMicros,
		PayoutDayOfWeek:     int16Param(in.PayoutDayOfWeek),
		PayoutDayOfMonth:    int16Param(in.PayoutDayOfMonth),
	}

	var row repository.PayoutSetting
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		lastPayout, err := qtx.GetLatestPayoutAt(ctx, params.StoreID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get latest payout: %w", err)
		}
		cfg := scheduleConfig(repository.PayoutSetting{
			Schedule:         params.Schedule,
			PayoutDayOfWeek:  params.PayoutDayOfWeek,
			PayoutDayOfMonth: params.PayoutDayOfMonth,
		})
		params.NextPayoutAt = repository.ToPgTimestamptz(cfg.Next(repository.FromNullPgTimestamptz(lastPayout), s.now()))

		row, err = qtx.UpsertPayoutSettings(ctx, params)
		if err != nil {
			return fmt.Errorf("upsert payout settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PayoutSettings{}, err
	}
	return s.toModel(row), nil
}

// minimumAmount returns the store's configured payout floor, zero when unset.
func (s *PayoutSettingsService) minimumAmount(ctx context.Context, qtx *repository.Queries, storeID pgtype.UUID) (int64, error) {
	row, err := qtx.GetPayoutSettings(ctx, storeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get payout settings: %w", err)
	}
	return row.MinimumAmountMicros, nil
}

// advance moves nextPayoutAt past a payout made at paidAt. Stores without
// settings are left alone.
func (s *PayoutSettingsService) advance(ctx context.Context, qtx *repository.Queries, storeID pgtype.UUID, paidAt time.Time) error {
	row, err := qtx.GetPayoutSettings(ctx, storeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get payout settings: %w", err)
	}
	next := scheduleConfig(row).Next(&paidAt, paidAt)
	rows, err := qtx.UpdateNextPayoutAt(ctx, storeID, repository.ToPgTimestamptz(next))
	if err != nil {
		return fmt.Errorf("update next payout date: %w", err)
	}
	return requireExactlyOne(rows, "update next payout date")
}

func (s *PayoutSettingsService) toModel(row repository.PayoutSetting) models.PayoutSettings {
	out := models.PayoutSettings{
		StoreID:             repository.FromPgUUID(row.StoreID),
		Method:              domain.PayoutMethod(row.Method),
		Schedule:            schedule.Schedule(row.Schedule),
		MinimumAmountMicros: row.MinimumAmountMicros,
		HoldPeriodDays:      s.holdPeriodDays,
		NextPayoutAt:        repository.FromNullPgTimestamptz(row.NextPayoutAt),
	}
	if row.PayoutDayOfWeek != nil {
		v := int(*row.PayoutDayOfWeek)
		out.PayoutDayOfWeek = &v
	}
	if row.PayoutDayOfMonth != nil {
		v := int(*row.PayoutDayOfMonth)
		out.PayoutDayOfMonth = &v
	}
	return out
}

func int16Param(v *int) *int16 {
	if v == nil {
		return nil
	}
	n := int16(*v)
	return &n
}
