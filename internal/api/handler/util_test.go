package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]any
	}{
		{
			name:       "validation",
			err:        fmt.Errorf("request payout: %w", domain.NewValidationError("amount_micros", "must be positive")),
			wantStatus: http.StatusBadRequest,
			wantType:   "request/validation",
			wantExt:    map[string]any{"field": "amount_micros"},
		},
		{
			name: "validation details",
			err: &domain.ValidationError{
				Field:   "amount_micros",
				Reason:  "below the payout minimum",
				Details: map[string]any{"minimum_micros": 5_000_000},
			},
			wantStatus: http.StatusBadRequest,
			wantType:   "request/validation",
			wantExt:    map[string]any{"field": "amount_micros", "minimum_micros": float64(5_000_000)},
		},
		{
			name:       "insufficient balance",
			err:        &domain.InsufficientBalanceError{Amount: 10_000_000, Available: 4_000_000, Currency: "USD"},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "payout/insufficient-balance",
			wantExt:    map[string]any{"available_micros": float64(4_000_000), "currency": "USD"},
		},
		{
			name:       "state transition",
			err:        &domain.InvalidStateTransitionError{Entity: "payout", From: "completed", To: "canceled"},
			wantStatus: http.StatusConflict,
			wantType:   "state/invalid-transition",
			wantExt:    map[string]any{"from": "completed", "to": "canceled"},
		},
		{
			name:       "not found",
			err:        fmt.Errorf("payout x: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantType:   "resource/not-found",
		},
		{
			name:       "forbidden",
			err:        domain.ErrForbidden,
			wantStatus: http.StatusForbidden,
			wantType:   "auth/insufficient-permissions",
		},
		{
			name:       "unique violation",
			err:        &pgconn.PgError{Code: "23505"},
			wantStatus: http.StatusConflict,
			wantType:   "db/unique-violation",
		},
		{
			name:       "unknown",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal-server-error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/test", nil)
			rr := httptest.NewRecorder()
			RespondServiceError(rr, req, "test op", tc.err)

			require.Equal(t, tc.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, problemURL(tc.wantType), body["type"])
			for k, v := range tc.wantExt {
				assert.Equal(t, v, body[k], k)
			}
			assert.NotContains(t, rr.Body.String(), "connection reset")
		})
	}
}

func TestParseActivityFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?type=sale_credit,refund&type=payout_debit&currency=usd&status=pending&from=2026-03-01&to=2026-03-31&q=+blue+", nil)
	filter, err := parseActivityFilter(req)
	require.NoError(t, err)

	assert.Equal(t, []domain.EntryType{domain.EntrySaleCredit, domain.EntryRefund, domain.EntryPayoutDebit}, filter.Types)
	assert.Equal(t, "usd", filter.Currency)
	assert.Equal(t, domain.EntryStatusPending, filter.Status)
	assert.Equal(t, "blue", filter.Query)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, "2026-03-01T00:00:00Z", filter.From.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "2026-03-31T23:59:59Z", filter.To.Format("2006-01-02T15:04:05Z07:00"))

	for _, bad := range []string{"type=bogus", "status=settled", "from=yesterday"} {
		_, err := parseActivityFilter(httptest.NewRequest(http.MethodGet, "/x?"+bad, nil))
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}
