package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryFilterWhere(t *testing.T) {
	storeID := uuid.New()
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	where, args := EntryFilter{
		Types:    []string{"refund", "sale_credit"},
		Currency: "EUR",
		From:     &from,
		Query:    "50%_off",
	}.where(storeID)

	assert.Equal(t,
		"store_id = $1 AND type = ANY($2::text[]) AND currency = $3 AND created_at >= $4 AND "+
			"(description ILIKE $5 OR order_id::text ILIKE $5 OR external_ref ILIKE $5)",
		where)
	require.Len(t, args, 5)
	assert.Equal(t, ToPgUUID(storeID), args[0])
	assert.Equal(t, `%50\%\_off%`, args[4])
}

func TestEntryFilterWhereEmpty(t *testing.T) {
	where, args := EntryFilter{}.where(uuid.New())
	assert.Equal(t, "store_id = $1", where)
	assert.Len(t, args, 1)
}

func TestPgUUIDConversions(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, FromPgUUID(ToPgUUID(id)))
	assert.Equal(t, uuid.Nil, FromPgUUID(ToNullPgUUID(nil)))
	assert.Nil(t, FromNullPgUUID(ToNullPgUUID(nil)))
	got := FromNullPgUUID(ToNullPgUUID(&id))
	require.NotNil(t, got)
	assert.Equal(t, id, *got)
}

func TestRetryableTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "wrapped deadlock", err: fmt.Errorf("lock seller balance: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}},
		{name: "plain error", err: errors.New("boom")},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryableTxError(tc.err))
		})
	}
}
