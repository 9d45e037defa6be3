package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateEvent         = errors.New("duplicate event")
	ErrExternalTransfer       = errors.New("external transfer failed")
	ErrReconciliationHold     = errors.New("reconciliation hold active")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field   string
	Reason  string
	Details map[string]any
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientBalanceError reports a payout larger than the withdrawable balance.
type InsufficientBalanceError struct {
	Amount    int64
	Available int64
	Currency  string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s",
		NewMoney(e.Amount, e.Currency), NewMoney(e.Available, e.Currency))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// InvalidStateTransitionError reports an operation the current state does not permit.
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("invalid %s state transition %s -> %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// DuplicateEventError marks a replayed upstream event. It is absorbed by the
// ledger and never returned to callers as a failure.
type DuplicateEventError struct {
	StoreID     uuid.UUID
	Type        EntryType
	ExternalRef string
	ExistingID  uuid.UUID
}

func (e *DuplicateEventError) Error() string {
	return fmt.Sprintf("duplicate %s event %q for store %s (entry %s)", e.Type, e.ExternalRef, e.StoreID, e.ExistingID)
}

func (e *DuplicateEventError) Is(target error) bool { return target == ErrDuplicateEvent }

// ExternalTransferError wraps a payout rail rejection.
type ExternalTransferError struct {
	Rail string
	Err  error
}

func (e *ExternalTransferError) Error() string {
	return fmt.Sprintf("rail %s: %v", e.Rail, e.Err)
}

func (e *ExternalTransferError) Unwrap() error { return e.Err }

func (e *ExternalTransferError) Is(target error) bool { return target == ErrExternalTransfer }

// ReconciliationHoldError explains why a pending entry was not promoted.
type ReconciliationHoldError struct {
	EntryID uuid.UUID
	OrderID uuid.UUID
	Kind    string
}

func (e *ReconciliationHoldError) Error() string {
	return fmt.Sprintf("entry %s held by open %s on order %s", e.EntryID, e.Kind, e.OrderID)
}

func (e *ReconciliationHoldError) Is(target error) bool { return target == ErrReconciliationHold }
