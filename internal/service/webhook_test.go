package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func signPayload(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	payload := []byte(`{"event_id":"evt_1"}`)

	svc := NewWebhookService(nil, nil, "secret", false)
	require.True(t, svc.verifyHMAC(payload, signPayload("secret", payload)))
	require.False(t, svc.verifyHMAC(payload, signPayload("other", payload)))
	require.False(t, svc.verifyHMAC(payload, ""))
	require.False(t, svc.verifyHMAC([]byte(`{"event_id":"evt_2"}`), signPayload("secret", payload)))

	unkeyed := NewWebhookService(nil, nil, "", false)
	require.False(t, unkeyed.verifyHMAC(payload, signPayload("", payload)))

	skipping := NewWebhookService(nil, nil, "", true)
	require.True(t, skipping.verifyHMAC(payload, ""))
}

func TestHandleSettlementRejectsBadInput(t *testing.T) {
	svc := NewWebhookService(nil, nil, "secret", false)
	ctx := context.Background()

	body := []byte(`{"event_id":"evt_1"}`)
	_, err := svc.HandleSettlement(ctx, body, "sha256=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	body = []byte(`{not json`)
	_, err = svc.HandleSettlement(ctx, body, signPayload("secret", body))
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "body", vErr.Field)

	body = []byte(`{"event_id":"evt_1","store_id":"nope","order_id":"` + uuid.NewString() + `","currency":"EUR","gross_micros":1}`)
	_, err = svc.HandleSettlement(ctx, body, signPayload("secret", body))
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "store_id", vErr.Field)
}

func TestHandleSettlementReplay(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestServices(pool, &stubRail{name: "stub", kind: domain.RailKindProgrammatic})
	webhooks := NewWebhookService(svc.ledger, svc.settlement, "secret", false)
	ctx := context.Background()
	storeID := uuid.New()
	settledAt := time.Now().Add(-time.Hour).UTC()

	body, err := json.Marshal(SettlementEvent{
		EventID:            "evt_sale_1",
		StoreID:            storeID.String(),
		OrderID:            uuid.NewString(),
		Currency:           "EUR",
		GrossMicros:        25_000_000,
		PlatformFeeMicros:  1_250_000,
		ProcessorFeeMicros: 750_000,
		SettledAt:          &settledAt,
	})
	require.NoError(t, err)
	sig := signPayload("secret", body)

	first, err := webhooks.HandleSettlement(ctx, body, sig)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := webhooks.HandleSettlement(ctx, body, sig)
	require.NoError(t, err)
	require.Len(t, second, 3)
	require.Equal(t, first[0].ID, second[0].ID)

	b := svc.balance(t, storeID, "EUR")
	require.Equal(t, int64(23_000_000), b.PendingMicros)
	require.Zero(t, b.AvailableMicros)
	requireLedgerMatchesBalances(t, pool)
}

func TestHandleProcessorEventDisputeFlow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestServices(pool, &stubRail{name: "stub", kind: domain.RailKindProgrammatic})
	webhooks := NewWebhookService(svc.ledger, svc.settlement, "secret", false)
	ctx := context.Background()
	storeID := uuid.New()
	orderID := uuid.New()

	send := func(ev ProcessorEvent) ProcessorEventResult {
		t.Helper()
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		res, err := webhooks.HandleProcessorEvent(ctx, body, signPayload("secret", body))
		require.NoError(t, err)
		return res
	}

	opened := send(ProcessorEvent{
		EventID:      "evt_d1",
		Type:         EventDisputeOpened,
		StoreID:      storeID.String(),
		OrderID:      orderID.String(),
		Currency:     "EUR",
		AmountMicros: 4_000_000,
		Reference:    "dp_9",
	})
	require.NotNil(t, opened.Hold)
	require.Equal(t, domain.HoldStatusOpen, opened.Hold.Status)

	won := send(ProcessorEvent{EventID: "evt_d2", Type: EventDisputeWon, StoreID: storeID.String(), Reference: "dp_9"})
	require.NotNil(t, won.Hold)
	require.Equal(t, domain.HoldStatusReleased, won.Hold.Status)
	require.Equal(t, opened.Hold.ID, won.Hold.ID)

	fee := send(ProcessorEvent{
		EventID:      "evt_f1",
		Type:         EventFeeAdjusted,
		StoreID:      storeID.String(),
		Currency:     "EUR",
		AmountMicros: -300_000,
	})
	require.NotNil(t, fee.Entry)
	require.Nil(t, fee.Hold)
	require.Equal(t, domain.EntryFeeAdjustment, fee.Entry.Type)

	replayed := send(ProcessorEvent{
		EventID:      "evt_f1",
		Type:         EventFeeAdjusted,
		StoreID:      storeID.String(),
		Currency:     "EUR",
		AmountMicros: -300_000,
	})
	require.Equal(t, fee.Entry.ID, replayed.Entry.ID)
	require.Equal(t, int64(-300_000), svc.balance(t, storeID, "EUR").AvailableMicros)

	body, err := json.Marshal(ProcessorEvent{EventID: "evt_x", Type: "chargeback.created", StoreID: storeID.String()})
	require.NoError(t, err)
	_, err = webhooks.HandleProcessorEvent(ctx, body, signPayload("secret", body))
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "type", vErr.Field)
}
