package handler

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	out := &statementWriter{w: rr, csv: csv.NewWriter(rr), flusher: rr, filename: "statement.csv"}

	orderID := uuid.New()
	createdAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < exportFlushEvery+1; i++ {
		require.NoError(t, out.writeEntry(models.LedgerEntry{
			ID:                 uuid.New(),
			Currency:           "USD",
			Type:               domain.EntrySaleCredit,
			Status:             domain.EntryStatusPending,
			AmountMicros:       12_500_000,
			BalanceAfterMicros: int64(i+1) * 12_500_000,
			AvailableAt:        createdAt.Add(7 * 24 * time.Hour),
			OrderID:            &orderID,
			ExternalRef:        "evt-1:sale_credit",
			Description:        "order, with comma",
			CreatedAt:          createdAt,
		}))
	}
	require.NoError(t, out.finish())

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "statement.csv")
	assert.True(t, rr.Flushed)

	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, exportFlushEvery+2)
	assert.Equal(t, exportHeader, records[0])

	row := records[1]
	assert.Equal(t, "2026-03-04T10:00:00Z", row[0])
	assert.Equal(t, "sale_credit", row[2])
	assert.Equal(t, "12.50", row[5])
	assert.Equal(t, "12500000", row[6])
	assert.Equal(t, orderID.String(), row[9])
	assert.Equal(t, "", row[10])
	assert.Equal(t, "order, with comma", row[12])
}

func TestStatementWriterEmpty(t *testing.T) {
	rr := httptest.NewRecorder()
	out := &statementWriter{w: rr, csv: csv.NewWriter(rr), filename: "statement.csv"}
	require.NoError(t, out.finish())

	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, exportHeader, records[0])
}
