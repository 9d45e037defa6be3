package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRailInitiateTransfer(t *testing.T) {
	storeID := uuid.New()
	var got transferBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "payout-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"reference": "tr_123"})
	}))
	defer srv.Close()

	rail := NewHTTPRail(HTTPRailConfig{BaseURL: srv.URL, APIKey: "secret"})
	ref, err := rail.InitiateTransfer(context.Background(), TransferRequest{
		IdempotencyKey: "payout-1",
		StoreID:        storeID,
		AmountMicros:   12_500_000,
		Currency:       "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_123", ref)
	assert.Equal(t, storeID.String(), got.StoreID)
	assert.Equal(t, int64(12_500_000), got.AmountMicros)
	assert.Equal(t, "EUR", got.Currency)
}

func TestHTTPRailRejectionVersusTransient(t *testing.T) {
	status := http.StatusUnprocessableEntity
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "account_closed", "message": "destination closed"})
	}))
	defer srv.Close()

	rail := NewHTTPRail(HTTPRailConfig{BaseURL: srv.URL})
	req := TransferRequest{IdempotencyKey: "k", StoreID: uuid.New(), AmountMicros: 1, Currency: "EUR"}

	_, err := rail.InitiateTransfer(context.Background(), req)
	require.ErrorIs(t, err, ErrRejected)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "account_closed", rej.Code)

	status = http.StatusBadGateway
	_, err = rail.InitiateTransfer(context.Background(), req)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestHTTPRailBalanceAndAdjustments(t *testing.T) {
	storeID := uuid.New()
	orderID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/balances/"+storeID.String(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NPR", r.URL.Query().Get("currency"))
		_ = json.NewEncoder(w).Encode(map[string]int64{"available_micros": 42})
	})
	mux.HandleFunc("/adjustments", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		oid := orderID.String()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"adjustments": []map[string]any{
				{"id": "adj_bad_store", "store_id": "not-a-uuid", "currency": "NPR", "amount_micros": 10},
				{"id": "adj_1", "store_id": storeID.String(), "currency": "NPR", "amount_micros": 150, "order_id": oid, "description": "fee refund"},
				{"id": "adj_bad_order", "store_id": storeID.String(), "currency": "NPR", "amount_micros": 20, "order_id": "order-42"},
				{"id": "adj_2", "store_id": storeID.String(), "currency": "NPR", "amount_micros": -75},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rail := NewHTTPRail(HTTPRailConfig{BaseURL: srv.URL, RPS: 50})
	bal, err := rail.AvailableBalance(context.Background(), storeID, "NPR")
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal)

	adjs, err := rail.Adjustments(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, adjs, 2, "malformed records are skipped, not fatal")
	assert.Equal(t, "adj_1", adjs[0].ExternalID)
	assert.Equal(t, storeID, adjs[0].StoreID)
	require.NotNil(t, adjs[0].OrderID)
	assert.Equal(t, orderID, *adjs[0].OrderID)
	assert.Equal(t, "adj_2", adjs[1].ExternalID)
	assert.Equal(t, int64(-75), adjs[1].AmountMicros)
	assert.Nil(t, adjs[1].OrderID)
}

func TestMockRailIsIdempotent(t *testing.T) {
	rail := NewMockRail()
	rail.FailureRate = 0
	rail.MinDelay, rail.MaxDelay = 0, 0

	req := TransferRequest{IdempotencyKey: "p-1", StoreID: uuid.New(), AmountMicros: 5, Currency: "USD"}
	first, err := rail.InitiateTransfer(context.Background(), req)
	require.NoError(t, err)
	second, err := rail.InitiateTransfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMockRailRejects(t *testing.T) {
	rail := NewMockRail()
	rail.FailureRate = 1
	rail.MinDelay, rail.MaxDelay = 0, 0

	_, err := rail.InitiateTransfer(context.Background(), TransferRequest{IdempotencyKey: "p-2"})
	require.ErrorIs(t, err, ErrRejected)
}

func TestRegistry(t *testing.T) {
	mock := NewMockRail()
	manual := NewManualRail()
	reg := NewRegistry(mock)
	reg.Register("NPR", manual)

	assert.Equal(t, "manual", reg.ForCurrency("NPR").Name())
	assert.Equal(t, "mock", reg.ForCurrency("EUR").Name())
	assert.Equal(t, []string{"mock"}, reg.ProgrammaticRailNames())

	tr, ok := reg.Transferer("mock")
	require.True(t, ok)
	assert.Equal(t, domain.RailKindProgrammatic, tr.Kind())

	_, ok = reg.Transferer("manual")
	assert.False(t, ok)

	names := []string{}
	for _, r := range reg.Rails() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"manual", "mock"}, names)
}
