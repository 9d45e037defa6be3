// Package gateway models the external payout rails. Rails differ in what
// they can do, so each capability is a separate interface that a rail may
// or may not implement.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/google/uuid"
)

// ErrRejected marks a definitive refusal by the rail. Any other transfer
// error is treated as transient and retried with the same idempotency key.
var ErrRejected = errors.New("transfer rejected")

// RejectionError carries the rail's reason for refusing a transfer.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	if e.Code == "" {
		return "transfer rejected: " + e.Reason
	}
	return fmt.Sprintf("transfer rejected (%s): %s", e.Code, e.Reason)
}

func (e *RejectionError) Is(target error) bool { return target == ErrRejected }

// Rail identifies a payout channel.
type Rail interface {
	Name() string
	Kind() string
}

type TransferRequest struct {
	IdempotencyKey string
	StoreID        uuid.UUID
	AmountMicros   int64
	Currency       string
}

// Transferer is implemented by rails with a programmatic payout API.
type Transferer interface {
	Rail
	// InitiateTransfer returns the rail's transfer reference. Repeating a
	// request with the same idempotency key returns the original reference.
	InitiateTransfer(ctx context.Context, req TransferRequest) (string, error)
}

// BalanceInspector is implemented by rails that report the balance they
// hold for a seller.
type BalanceInspector interface {
	Rail
	AvailableBalance(ctx context.Context, storeID uuid.UUID, currency string) (int64, error)
}

// Adjustment is a processor-side correction such as a fee refund.
type Adjustment struct {
	ExternalID   string
	StoreID      uuid.UUID
	Currency     string
	AmountMicros int64
	OrderID      *uuid.UUID
	Description  string
}

// AdjustmentFeed is implemented by rails that publish fee corrections.
type AdjustmentFeed interface {
	Rail
	Adjustments(ctx context.Context, since time.Time) ([]Adjustment, error)
}

// Registry maps currencies to rails.
type Registry struct {
	mu       sync.RWMutex
	byCode   map[string]Rail
	fallback Rail
}

func NewRegistry(fallback Rail) *Registry {
	return &Registry{byCode: make(map[string]Rail), fallback: fallback}
}

func (r *Registry) Register(currency string, rail Rail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[currency] = rail
}

// ForCurrency returns the rail registered for currency, or the fallback.
func (r *Registry) ForCurrency(currency string) Rail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rail, ok := r.byCode[currency]; ok {
		return rail
	}
	return r.fallback
}

// Rails returns each distinct rail once, ordered by name.
func (r *Registry) Rails() []Rail {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]Rail)
	if r.fallback != nil {
		seen[r.fallback.Name()] = r.fallback
	}
	for _, rail := range r.byCode {
		seen[rail.Name()] = rail
	}
	out := make([]Rail, 0, len(seen))
	for _, rail := range seen {
		out = append(out, rail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Transferer looks up a rail by name and returns it if it can move money.
func (r *Registry) Transferer(name string) (Transferer, bool) {
	for _, rail := range r.Rails() {
		if rail.Name() == name {
			t, ok := rail.(Transferer)
			return t, ok
		}
	}
	return nil, false
}

// ProgrammaticRailNames lists the rails the payout worker may drive.
func (r *Registry) ProgrammaticRailNames() []string {
	var names []string
	for _, rail := range r.Rails() {
		if _, ok := rail.(Transferer); ok && rail.Kind() == domain.RailKindProgrammatic {
			names = append(names, rail.Name())
		}
	}
	return names
}
