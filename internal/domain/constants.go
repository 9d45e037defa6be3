package domain

// EntryType classifies a ledger entry and decides which sign its amount must carry.
type EntryType string

const (
	EntrySaleCredit        EntryType = "sale_credit"
	EntryPlatformFee       EntryType = "platform_fee"
	EntryProcessorFee      EntryType = "processor_fee"
	EntryShippingLabel     EntryType = "shipping_label"
	EntryRefund            EntryType = "refund"
	EntryDisputeAdjustment EntryType = "dispute_adjustment"
	EntryFeeAdjustment     EntryType = "fee_adjustment"
	EntryPayoutDebit       EntryType = "payout_debit"
	EntryManualAdjustment  EntryType = "manual_adjustment"
)

type amountSign int

const (
	signCredit amountSign = iota + 1
	signDebit
	signEither
)

type entryPolicy struct {
	sign   amountSign
	status EntryStatus
}

var entryPolicies = map[EntryType]entryPolicy{
	EntrySaleCredit:        {sign: signCredit, status: EntryStatusPending},
	EntryPlatformFee:       {sign: signDebit, status: EntryStatusPending},
	EntryProcessorFee:      {sign: signDebit, status: EntryStatusPending},
	EntryShippingLabel:     {sign: signDebit, status: EntryStatusAvailable},
	EntryRefund:            {sign: signDebit, status: EntryStatusAvailable},
	EntryDisputeAdjustment: {sign: signEither, status: EntryStatusAvailable},
	EntryFeeAdjustment:     {sign: signEither, status: EntryStatusAvailable},
	EntryPayoutDebit:       {sign: signDebit, status: EntryStatusAvailable},
	EntryManualAdjustment:  {sign: signEither, status: EntryStatusAvailable},
}

// EntryTypes lists every entry type in statement order.
var EntryTypes = []EntryType{
	EntrySaleCredit,
	EntryPlatformFee,
	EntryProcessorFee,
	EntryShippingLabel,
	EntryRefund,
	EntryDisputeAdjustment,
	EntryFeeAdjustment,
	EntryPayoutDebit,
	EntryManualAdjustment,
}

func (t EntryType) IsValid() bool {
	_, ok := entryPolicies[t]
	return ok
}

// DefaultStatus is the status an entry of this type is written with when the
// caller does not choose one.
func (t EntryType) DefaultStatus() EntryStatus {
	return entryPolicies[t].status
}

// ValidateAmount checks the sign of amount against the type's policy.
// Zero is never a valid ledger amount.
func (t EntryType) ValidateAmount(amount int64) error {
	policy, ok := entryPolicies[t]
	if !ok {
		return NewValidationError("type", "unknown entry type")
	}
	if amount == 0 {
		return NewValidationError("amount_micros", "amount must be non-zero")
	}
	switch policy.sign {
	case signCredit:
		if amount < 0 {
			return NewValidationError("amount_micros", string(t)+" must be positive")
		}
	case signDebit:
		if amount > 0 {
			return NewValidationError("amount_micros", string(t)+" must be negative")
		}
	}
	return nil
}

func ParseEntryType(v string) (EntryType, error) {
	t := EntryType(v)
	if !t.IsValid() {
		return "", NewValidationError("type", "unknown entry type "+v)
	}
	return t, nil
}

// EntryStatus is the settlement state of a ledger entry. Statuses only advance.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusAvailable EntryStatus = "available"
	EntryStatusPaid      EntryStatus = "paid"
)

func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusPending, EntryStatusAvailable, EntryStatusPaid:
		return true
	}
	return false
}

func ParseEntryStatus(v string) (EntryStatus, error) {
	s := EntryStatus(v)
	if !s.IsValid() {
		return "", NewValidationError("status", "unknown entry status "+v)
	}
	return s, nil
}

// Payout statuses
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
	PayoutStatusCanceled   = "canceled"
)

// PayoutMethod decides whether payouts are requested by the seller or by the scheduler.
type PayoutMethod string

const (
	PayoutMethodManual    PayoutMethod = "manual"
	PayoutMethodAutomatic PayoutMethod = "automatic"
)

func (m PayoutMethod) IsValid() bool {
	return m == PayoutMethodManual || m == PayoutMethodAutomatic
}

// Hold kinds and statuses
const (
	HoldKindDispute = "dispute"
	HoldKindRefund  = "refund"

	HoldStatusOpen     = "open"
	HoldStatusReleased = "released"
	HoldStatusLost     = "lost"
)

// Rail kinds
const (
	RailKindProgrammatic = "programmatic"
	RailKindManual       = "manual"
)

// Audit entity types
const (
	AuditEntityPayout = "payout"
)

// Roles carried in access tokens.
const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)
