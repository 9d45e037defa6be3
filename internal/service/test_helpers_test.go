package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/seller-payouts/internal/db"
	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/gateway"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var testCurrencies = []string{"EUR", "NPR", "USD"}

const testHoldPeriod = 7 * 24 * time.Hour

// setupTestDB connects to DATABASE_URL, migrates and empties every table.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	for _, table := range []string{"audit_log", "ledger_entries", "ledger_holds", "payouts", "payout_settings", "seller_balances", "idempotency_keys"} {
		stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		if _, err := pool.Exec(context.Background(), stmt); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
	return pool
}

type stubRail struct {
	name string
	kind string

	mu    sync.Mutex
	ref   string
	err   error
	calls []gateway.TransferRequest
}

func (s *stubRail) Name() string { return s.name }

func (s *stubRail) Kind() string { return s.kind }

func (s *stubRail) InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.ref, s.err
}

func (s *stubRail) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type testServices struct {
	store      *repository.Store
	queries    *repository.Queries
	ledger     *LedgerService
	settings   *PayoutSettingsService
	wallet     *WalletService
	payouts    *PayoutService
	settlement *SettlementService
	rails      *gateway.Registry
}

func newTestServices(pool *pgxpool.Pool, fallback gateway.Rail) *testServices {
	store := repository.NewStore(pool)
	rails := gateway.NewRegistry(fallback)
	rails.Register("NPR", gateway.NewManualRail())
	ledger := NewLedgerService(store, repository.NewRepository(pool), testCurrencies, testHoldPeriod)
	settings := NewPayoutSettingsService(store, 7)
	return &testServices{
		store:      store,
		queries:    repository.New(pool),
		ledger:     ledger,
		settings:   settings,
		wallet:     NewWalletService(store, rails, settings),
		payouts:    NewPayoutService(store, rails, ledger, settings, testCurrencies, 2*time.Minute),
		settlement: NewSettlementService(store, ledger, rails, 4, 72*time.Hour),
		rails:      rails,
	}
}

// fund credits an available manual adjustment.
func (s *testServices) fund(t *testing.T, storeID uuid.UUID, currency string, amount int64) {
	t.Helper()
	_, err := s.ledger.Append(context.Background(), AppendEntryInput{
		StoreID:      storeID,
		Currency:     currency,
		Type:         domain.EntryManualAdjustment,
		AmountMicros: amount,
		Status:       domain.EntryStatusAvailable,
	})
	require.NoError(t, err)
}

func (s *testServices) balance(t *testing.T, storeID uuid.UUID, currency string) repository.SellerBalance {
	t.Helper()
	b, err := s.queries.GetSellerBalance(context.Background(), repository.SellerBalanceKey{
		StoreID:  repository.ToPgUUID(storeID),
		Currency: currency,
	})
	require.NoError(t, err)
	return b
}

// requireLedgerMatchesBalances asserts the cached balances agree with the ledger.
func requireLedgerMatchesBalances(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	drift, err := NewReconciliationService(repository.NewStore(pool)).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift)
}
