package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/validation"
	"github.com/google/uuid"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Processor event types.
const (
	EventDisputeOpened   = "dispute.opened"
	EventDisputeWon      = "dispute.won"
	EventDisputeLost     = "dispute.lost"
	EventRefundRequested = "refund.requested"
	EventRefundCanceled  = "refund.canceled"
	EventRefundCompleted = "refund.completed"
	EventFeeAdjusted     = "fee.adjusted"
)

// WebhookService handles incoming webhook events from external systems.
// Every event is keyed by an upstream id, so redelivery is harmless.
type WebhookService struct {
	ledger     *LedgerService
	settlement *SettlementService
	hmacKey    []byte
	skipSig    bool
}

// NewWebhookService creates a new WebhookService instance.
func NewWebhookService(ledger *LedgerService, settlement *SettlementService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		ledger:     ledger,
		settlement: settlement,
		hmacKey:    []byte(hmacKey),
		skipSig:    skipSignature,
	}
}

// SettlementEvent is a captured checkout payment as sent by checkout.
type SettlementEvent struct {
	EventID             string     `json:"event_id" validate:"required"`
	StoreID             string     `json:"store_id" validate:"required,uuid"`
	OrderID             string     `json:"order_id" validate:"required,uuid"`
	Currency            string     `json:"currency" validate:"required,len=3"`
	GrossMicros         int64      `json:"gross_micros" validate:"gt=0"`
	PlatformFeeMicros   int64      `json:"platform_fee_micros" validate:"gte=0"`
	ProcessorFeeMicros  int64      `json:"processor_fee_micros" validate:"gte=0"`
	ShippingLabelMicros int64      `json:"shipping_label_micros" validate:"gte=0"`
	SettledAt           *time.Time `json:"settled_at"`
	Description         string     `json:"description"`
}

// ProcessorEvent is a dispute, refund or fee correction from the payment processor.
type ProcessorEvent struct {
	EventID      string `json:"event_id" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=dispute.opened dispute.won dispute.lost refund.requested refund.canceled refund.completed fee.adjusted"`
	StoreID      string `json:"store_id" validate:"required,uuid"`
	OrderID      string `json:"order_id" validate:"omitempty,uuid"`
	Currency     string `json:"currency"`
	AmountMicros int64  `json:"amount_micros"`
	Reference    string `json:"reference"`
	Description  string `json:"description"`
}

// ProcessorEventResult reports what a processor event changed.
type ProcessorEventResult struct {
	Type  string              `json:"type"`
	Hold  *models.LedgerHold  `json:"hold,omitempty"`
	Entry *models.LedgerEntry `json:"entry,omitempty"`
}

// HandleSettlement records a sale and its fees.
func (s *WebhookService) HandleSettlement(ctx context.Context, payload []byte, signature string) ([]models.LedgerEntry, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}
	var ev SettlementEvent
	if err := decodeEvent(payload, &ev); err != nil {
		return nil, err
	}

	sale := SaleSettlement{
		StoreID:             uuid.MustParse(ev.StoreID),
		Currency:            ev.Currency,
		OrderID:             uuid.MustParse(ev.OrderID),
		ExternalRef:         ev.EventID,
		GrossMicros:         ev.GrossMicros,
		PlatformFeeMicros:   ev.PlatformFeeMicros,
		ProcessorFeeMicros:  ev.ProcessorFeeMicros,
		ShippingLabelMicros: ev.ShippingLabelMicros,
		Description:         ev.Description,
	}
	if ev.SettledAt != nil {
		sale.SettledAt = *ev.SettledAt
	}
	return s.ledger.RecordSale(ctx, sale)
}

// HandleProcessorEvent applies a dispute, refund or fee event. Dispute and
// refund events carry the processor's dispute or refund id in Reference.
func (s *WebhookService) HandleProcessorEvent(ctx context.Context, payload []byte, signature string) (ProcessorEventResult, error) {
	if !s.verifyHMAC(payload, signature) {
		return ProcessorEventResult{}, ErrInvalidSignature
	}
	var ev ProcessorEvent
	if err := decodeEvent(payload, &ev); err != nil {
		return ProcessorEventResult{}, err
	}
	if ev.Reference == "" {
		ev.Reference = ev.EventID
	}
	storeID := uuid.MustParse(ev.StoreID)
	var orderID uuid.UUID
	if ev.OrderID != "" {
		orderID = uuid.MustParse(ev.OrderID)
	}

	result := ProcessorEventResult{Type: ev.Type}
	var hold models.LedgerHold
	var err error
	switch ev.Type {
	case EventDisputeOpened, EventRefundRequested:
		kind := domain.HoldKindDispute
		if ev.Type == EventRefundRequested {
			kind = domain.HoldKindRefund
		}
		hold, err = s.settlement.OpenHold(ctx, HoldInput{
			StoreID:      storeID,
			Currency:     ev.Currency,
			OrderID:      orderID,
			Kind:         kind,
			AmountMicros: ev.AmountMicros,
			ExternalRef:  ev.Reference,
		})
	case EventDisputeWon:
		hold, err = s.settlement.ReleaseHold(ctx, storeID, domain.HoldKindDispute, ev.Reference)
	case EventRefundCanceled:
		hold, err = s.settlement.ReleaseHold(ctx, storeID, domain.HoldKindRefund, ev.Reference)
	case EventDisputeLost:
		hold, err = s.settlement.MarkDisputeLost(ctx, storeID, ev.Reference)
	case EventRefundCompleted:
		var entry models.LedgerEntry
		entry, err = s.settlement.CompleteRefund(ctx, RefundCompletion{
			StoreID:      storeID,
			Currency:     ev.Currency,
			OrderID:      orderID,
			AmountMicros: ev.AmountMicros,
			ExternalRef:  ev.Reference,
			Description:  ev.Description,
		})
		result.Entry = &entry
	case EventFeeAdjusted:
		var entry models.LedgerEntry
		in := AppendEntryInput{
			StoreID:      storeID,
			Currency:     ev.Currency,
			Type:         domain.EntryFeeAdjustment,
			AmountMicros: ev.AmountMicros,
			ExternalRef:  ev.EventID,
			Description:  ev.Description,
		}
		if orderID != uuid.Nil {
			in.OrderID = &orderID
		}
		entry, err = s.ledger.Append(ctx, in)
		result.Entry = &entry
	}
	if err != nil {
		return ProcessorEventResult{}, err
	}
	if result.Entry == nil {
		result.Hold = &hold
	}
	return result, nil
}

func decodeEvent(payload []byte, dest any) error {
	if err := json.Unmarshal(payload, dest); err != nil {
		return domain.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return validation.Struct(dest)
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	// Use hmac.Equal for constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
