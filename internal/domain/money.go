package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the number of micros in one currency unit.
const MicrosPerUnit = 1_000_000

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64  // micros
	Currency string // ISO 4217
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(MicrosPerUnit))
}

var (
	maxMicros = decimal.NewFromInt(math.MaxInt64)
	minMicros = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts a decimal.Decimal to int64 micros. Values with more
// than six fractional digits or outside the int64 micro range are rejected.
func FromDecimal(d decimal.Decimal) (int64, error) {
	micros := d.Mul(decimal.NewFromInt(MicrosPerUnit))
	if !micros.Equal(micros.Truncate(0)) {
		return 0, NewValidationError("amount", "amount has more than 6 decimal places")
	}
	if micros.GreaterThan(maxMicros) || micros.LessThan(minMicros) {
		return 0, NewValidationError("amount", "amount is out of range")
	}
	return micros.IntPart(), nil
}

// ParseAmount parses a decimal string such as "12.50" into micros.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError("amount", "amount must be a decimal number")
	}
	return FromDecimal(d)
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}

// NormalizeCurrency upper-cases code and checks it against the supported set.
// An empty supported set accepts any well-formed ISO 4217 code.
func NormalizeCurrency(code string, supported []string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(c) {
		return "", NewValidationError("currency", "currency must be a 3-letter ISO 4217 code")
	}
	if len(supported) == 0 {
		return c, nil
	}
	for _, s := range supported {
		if s == c {
			return c, nil
		}
	}
	return "", &ValidationError{
		Field:   "currency",
		Reason:  "unsupported currency " + c,
		Details: map[string]any{"supported": supported},
	}
}
