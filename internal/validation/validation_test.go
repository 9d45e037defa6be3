package validation

import (
	"testing"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Method string `json:"method" validate:"required,oneof=manual automatic"`
	Amount int64  `json:"amount_micros" validate:"gt=0"`
	Day    *int   `json:"payout_day_of_week" validate:"omitempty,min=0,max=6"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Method: "manual", Amount: 1}))

	day := 9
	err := Struct(sample{Method: "weekly", Amount: 0, Day: &day})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount_micros", vErr.Field)
	assert.Equal(t, "must be greater than 0", vErr.Reason)
	assert.Equal(t, "must be one of [manual automatic]", vErr.Details["method"])
	assert.Equal(t, "must be at most 6", vErr.Details["payout_day_of_week"])
	assert.ErrorIs(t, err, domain.ErrValidation)
}
