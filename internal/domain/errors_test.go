package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("amount", "must be positive"), ErrValidation},
		{"insufficient", &InsufficientBalanceError{Amount: 2, Available: 1, Currency: "EUR"}, ErrInsufficientBalance},
		{"state", &InvalidStateTransitionError{Entity: "payout", From: "completed", To: "processing"}, ErrInvalidStateTransition},
		{"duplicate", &DuplicateEventError{StoreID: uuid.New(), Type: EntryRefund, ExternalRef: "re_1"}, ErrDuplicateEvent},
		{"transfer", &ExternalTransferError{Rail: "mock", Err: errors.New("declined")}, ErrExternalTransfer},
		{"hold", &ReconciliationHoldError{EntryID: uuid.New(), OrderID: uuid.New(), Kind: HoldKindDispute}, ErrReconciliationHold},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("operation: %w", tc.err)
			assert.True(t, errors.Is(wrapped, tc.sentinel))
		})
	}
}

func TestExternalTransferErrorUnwraps(t *testing.T) {
	cause := errors.New("account closed")
	err := &ExternalTransferError{Rail: "http", Err: cause}
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "account closed")
}

func TestInsufficientBalanceErrorMessage(t *testing.T) {
	err := &InsufficientBalanceError{Amount: 10_010_000, Available: 10_000_000, Currency: "EUR"}
	assert.Equal(t, "insufficient balance: requested 10.01 EUR, available 10.00 EUR", err.Error())
}

func TestEntryTypeValidateAmount(t *testing.T) {
	tests := []struct {
		typ     EntryType
		amount  int64
		wantErr bool
	}{
		{EntrySaleCredit, 100, false},
		{EntrySaleCredit, -100, true},
		{EntryPlatformFee, -5, false},
		{EntryPlatformFee, 5, true},
		{EntryPayoutDebit, -1, false},
		{EntryPayoutDebit, 1, true},
		{EntryDisputeAdjustment, 7, false},
		{EntryDisputeAdjustment, -7, false},
		{EntryManualAdjustment, 0, true},
		{EntryType("bonus"), 10, true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(fmt.Sprintf("%s/%d", tc.typ, tc.amount), func(t *testing.T) {
			err := tc.typ.ValidateAmount(tc.amount)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEntryTypeDefaultStatus(t *testing.T) {
	assert.Equal(t, EntryStatusPending, EntrySaleCredit.DefaultStatus())
	assert.Equal(t, EntryStatusPending, EntryProcessorFee.DefaultStatus())
	assert.Equal(t, EntryStatusAvailable, EntryRefund.DefaultStatus())
	assert.Equal(t, EntryStatusAvailable, EntryPayoutDebit.DefaultStatus())
	for _, typ := range EntryTypes {
		assert.True(t, typ.IsValid(), typ)
	}
}
