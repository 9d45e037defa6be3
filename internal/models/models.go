package models

import (
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/schedule"
	"github.com/google/uuid"
)

type LedgerEntry struct {
	ID                 uuid.UUID          `json:"id"`
	StoreID            uuid.UUID          `json:"store_id"`
	Currency           string             `json:"currency"`
	Type               domain.EntryType   `json:"type"`
	AmountMicros       int64              `json:"amount_micros"`
	Status             domain.EntryStatus `json:"status"`
	AvailableAt        time.Time          `json:"available_at"`
	BalanceAfterMicros int64              `json:"balance_after_micros"`
	OrderID            *uuid.UUID         `json:"order_id,omitempty"`
	PayoutID           *uuid.UUID         `json:"payout_id,omitempty"`
	ExternalRef        string             `json:"external_ref"`
	Description        string             `json:"description,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

type ActivityPage struct {
	Entries    []LedgerEntry `json:"entries"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type SellerBalance struct {
	StoreID          uuid.UUID  `json:"store_id"`
	Currency         string     `json:"currency"`
	AvailableMicros  int64      `json:"available_micros"`
	PendingMicros    int64      `json:"pending_micros"`
	ReservedMicros   int64      `json:"reserved_micros"`
	LastPayoutAt     *time.Time `json:"last_payout_at,omitempty"`
	LastPayoutMicros *int64     `json:"last_payout_micros,omitempty"`
}

// WalletSummary is the seller-facing view of one currency wallet.
type WalletSummary struct {
	Currency                      string     `json:"currency"`
	AvailableMicros               int64      `json:"available_micros"`
	PendingMicros                 int64      `json:"pending_micros"`
	AmountDueMicros               int64      `json:"amount_due_micros"`
	ReservedFeesFromPendingMicros int64      `json:"reserved_fees_from_pending_micros"`
	CurrentBalanceMicros          int64      `json:"current_balance_micros"`
	LedgerAvailableMicros         int64      `json:"ledger_available_micros"`
	ExternalAvailableMicros       *int64     `json:"external_available_micros,omitempty"`
	ReservedMicros                int64      `json:"reserved_micros"`
	WithdrawableMicros            int64      `json:"withdrawable_micros"`
	LastPayoutAt                  *time.Time `json:"last_payout_at,omitempty"`
	LastPayoutMicros              *int64     `json:"last_payout_micros,omitempty"`
	NextPayoutAt                  *time.Time `json:"next_payout_at,omitempty"`
}

type Payout struct {
	ID                  uuid.UUID  `json:"id"`
	StoreID             uuid.UUID  `json:"store_id"`
	Currency            string     `json:"currency"`
	AmountMicros        int64      `json:"amount_micros"`
	Status              string     `json:"status"`
	Rail                string     `json:"rail"`
	ReferenceID         string     `json:"reference_id"`
	ExternalTransferRef *string    `json:"external_transfer_ref,omitempty"`
	RequestedBy         string     `json:"requested_by"`
	RequestedAt         time.Time  `json:"requested_at"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	FailureReason       *string    `json:"failure_reason,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type PayoutSettings struct {
	StoreID             uuid.UUID           `json:"store_id"`
	Method              domain.PayoutMethod `json:"method"`
	Schedule            schedule.Schedule   `json:"schedule"`
	MinimumAmountMicros int64               `json:"minimum_amount_micros"`
	PayoutDayOfWeek     *int                `json:"payout_day_of_week,omitempty"`
	PayoutDayOfMonth    *int                `json:"payout_day_of_month,omitempty"`
	HoldPeriodDays      int                 `json:"hold_period_days"`
	NextPayoutAt        *time.Time          `json:"next_payout_at,omitempty"`
}

type LedgerHold struct {
	ID           uuid.UUID  `json:"id"`
	StoreID      uuid.UUID  `json:"store_id"`
	Currency     string     `json:"currency"`
	OrderID      uuid.UUID  `json:"order_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	AmountMicros int64      `json:"amount_micros"`
	ExternalRef  string     `json:"external_ref"`
	OpenedAt     time.Time  `json:"opened_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// SettlementReport summarises one reconciler run.
type SettlementReport struct {
	AdjustmentsApplied  int `json:"adjustments_applied"`
	LostDisputesApplied int `json:"lost_disputes_applied"`
	PairsReconciled     int `json:"pairs_reconciled"`
	EntriesPromoted     int `json:"entries_promoted"`
	EntriesHeld         int `json:"entries_held"`
	PairsFailed         int `json:"pairs_failed"`
}
