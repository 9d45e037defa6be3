package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AuditLog struct {
	ID         int64              `json:"id"`
	EntityType string             `json:"entity_type"`
	EntityID   pgtype.UUID        `json:"entity_id"`
	Actor      *string            `json:"actor"`
	Action     string             `json:"action"`
	PrevState  *string            `json:"prev_state"`
	NextState  *string            `json:"next_state"`
	Metadata   []byte             `json:"metadata"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type IdempotencyKey struct {
	IdempotencyKey string             `json:"idempotency_key"`
	RequestHash    string             `json:"request_hash"`
	Method         string             `json:"method"`
	Path           string             `json:"path"`
	ResponseStatus int32              `json:"response_status"`
	ResponseBody   []byte             `json:"response_body"`
	ContentType    string             `json:"content_type"`
	InProgress     bool               `json:"in_progress"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type LedgerEntry struct {
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
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type LedgerHold struct {
	ID           pgtype.UUID        `json:"id"`
	StoreID      pgtype.UUID        `json:"store_id"`
	Currency     string             `json:"currency"`
	OrderID      pgtype.UUID        `json:"order_id"`
	Kind         string             `json:"kind"`
	Status       string             `json:"status"`
	AmountMicros int64              `json:"amount_micros"`
	ExternalRef  string             `json:"external_ref"`
	OpenedAt     pgtype.Timestamptz `json:"opened_at"`
	ResolvedAt   pgtype.Timestamptz `json:"resolved_at"`
	AppliedAt    pgtype.Timestamptz `json:"applied_at"`
}

type Payout struct {
	ID                  pgtype.UUID        `json:"id"`
	StoreID             pgtype.UUID        `json:"store_id"`
	Currency            string             `json:"currency"`
	AmountMicros        int64              `json:"amount_micros"`
	Status              string             `json:"status"`
	Rail                string             `json:"rail"`
	ReferenceID         string             `json:"reference_id"`
	ExternalTransferRef *string            `json:"external_transfer_ref"`
	RequestedBy         string             `json:"requested_by"`
	RequestedAt         pgtype.Timestamptz `json:"requested_at"`
	ProcessedAt         pgtype.Timestamptz `json:"processed_at"`
	CompletedAt         pgtype.Timestamptz `json:"completed_at"`
	FailureReason       *string            `json:"failure_reason"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type PayoutSetting struct {
	StoreID             pgtype.UUID        `json:"store_id"`
	Method              string             `json:"method"`
	Schedule            string             `json:"schedule"`
	MinimumAmountMicros int64              `json:"minimum_amount_micros"`
	PayoutDayOfWeek     *int16             `json:"payout_day_of_week"`
	PayoutDayOfMonth    *int16             `json:"payout_day_of_month"`
	NextPayoutAt        pgtype.Timestamptz `json:"next_payout_at"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
	UpdatedAt           pgtype.Timestamptz `json:"updated_at"`
}

type SellerBalance struct {
	StoreID          pgtype.UUID        `json:"store_id"`
	Currency         string             `json:"currency"`
	AvailableMicros  int64              `json:"available_micros"`
	PendingMicros    int64              `json:"pending_micros"`
	ReservedMicros   int64              `json:"reserved_micros"`
	LastPayoutAt     pgtype.Timestamptz `json:"last_payout_at"`
	LastPayoutMicros *int64             `json:"last_payout_micros"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}
