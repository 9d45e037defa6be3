package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService verifies that cached balances agree with the ledger.
type ReconciliationService struct {
	store QueryStore
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run compares every balance row with its ledger sums and open payouts and
// returns the rows that disagree. Drift is logged, not repaired.
func (s *ReconciliationService) Run(ctx context.Context) ([]repository.BalanceDrift, error) {
	drift, err := s.store.Queries().ListBalanceDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("run balance drift query: %w", err)
	}

	for _, row := range drift {
		observability.IncrementLedgerImbalance(row.Currency)
		zap.L().Error("CRITICAL: seller balance drift detected",
			zap.String("store_id", repository.FromPgUUID(row.StoreID).String()),
			zap.String("currency", row.Currency),
			zap.Int64("available_micros", row.AvailableMicros),
			zap.Int64("ledger_available_micros", row.LedgerAvailableMicros),
			zap.Int64("pending_micros", row.PendingMicros),
			zap.Int64("ledger_pending_micros", row.LedgerPendingMicros),
			zap.Int64("reserved_micros", row.ReservedMicros),
			zap.Int64("open_payout_micros", row.OpenPayoutMicros),
		)
	}
	if len(drift) == 0 {
		zap.L().Info("Ledger Balanced")
	}
	return drift, nil
}
