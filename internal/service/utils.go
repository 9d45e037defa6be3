package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/ayo6706/seller-payouts/internal/schedule"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

func marshalReasonMetadata(reason string) ([]byte, error) {
	return json.Marshal(map[string]string{
		"reason": reason,
	})
}

func toLedgerEntry(row repository.LedgerEntry) models.LedgerEntry {
	return models.LedgerEntry{
		ID:                 repository.FromPgUUID(row.ID),
		StoreID:            repository.FromPgUUID(row.StoreID),
		Currency:           row.Currency,
		Type:               domain.EntryType(row.Type),
		AmountMicros:       row.AmountMicros,
		Status:             domain.EntryStatus(row.Status),
		AvailableAt:        row.AvailableAt.Time,
		BalanceAfterMicros: row.BalanceAfterMicros,
		OrderID:            repository.FromNullPgUUID(row.OrderID),
		PayoutID:           repository.FromNullPgUUID(row.PayoutID),
		ExternalRef:        row.ExternalRef,
		Description:        row.Description,
		CreatedAt:          row.CreatedAt.Time,
	}
}

func toPayout(row repository.Payout) models.Payout {
	return models.Payout{
		ID:                  repository.FromPgUUID(row.ID),
		StoreID:             repository.FromPgUUID(row.StoreID),
		Currency:            row.Currency,
		AmountMicros:        row.AmountMicros,
		Status:              row.Status,
		Rail:                row.Rail,
		ReferenceID:         row.ReferenceID,
		ExternalTransferRef: row.ExternalTransferRef,
		RequestedBy:         row.RequestedBy,
		RequestedAt:         row.RequestedAt.Time,
		ProcessedAt:         repository.FromNullPgTimestamptz(row.ProcessedAt),
		CompletedAt:         repository.FromNullPgTimestamptz(row.CompletedAt),
		FailureReason:       row.FailureReason,
		UpdatedAt:           row.UpdatedAt.Time,
	}
}

func toLedgerHold(row repository.LedgerHold) models.LedgerHold {
	return models.LedgerHold{
		ID:           repository.FromPgUUID(row.ID),
		StoreID:      repository.FromPgUUID(row.StoreID),
		Currency:     row.Currency,
		OrderID:      repository.FromPgUUID(row.OrderID),
		Kind:         row.Kind,
		Status:       row.Status,
		AmountMicros: row.AmountMicros,
		ExternalRef:  row.ExternalRef,
		OpenedAt:     row.OpenedAt.Time,
		ResolvedAt:   repository.FromNullPgTimestamptz(row.ResolvedAt),
	}
}

func scheduleConfig(row repository.PayoutSetting) schedule.Config {
	cfg := schedule.Config{Schedule: schedule.Schedule(row.Schedule)}
	if row.PayoutDayOfWeek != nil {
		dow := time.Weekday(*row.PayoutDayOfWeek)
		cfg.DayOfWeek = &dow
	}
	if row.PayoutDayOfMonth != nil {
		dom := int(*row.PayoutDayOfMonth)
		cfg.DayOfMonth = &dom
	}
	return cfg
}
