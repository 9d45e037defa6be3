package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/seller-payouts/internal/gateway"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const externalBalanceTimeout = 3 * time.Second

// Wallet is the derived balance view of one store and currency.
type Wallet struct {
	LedgerAvailable         int64
	Pending                 int64
	ExternalAvailable       *int64
	Available               int64
	AmountDue               int64
	ReservedFeesFromPending int64
	CurrentBalance          int64
}

// ComputeWallet derives the wallet from ledger sums and, when the rail
// reports one, the externally settled balance. It has no side effects.
func ComputeWallet(ledgerAvailable, pending int64, external *int64) Wallet {
	w := Wallet{
		LedgerAvailable:   ledgerAvailable,
		Pending:           pending,
		ExternalAvailable: external,
		Available:         max(0, ledgerAvailable),
		CurrentBalance:    ledgerAvailable + pending,
	}
	if external != nil {
		w.Available = min(w.Available, max(0, *external))
	}
	if ledgerAvailable < 0 {
		deficit := -ledgerAvailable
		if pending >= deficit {
			w.ReservedFeesFromPending = deficit
		} else {
			w.AmountDue = deficit
		}
	}
	return w
}

// WalletService builds the seller-facing wallet summary.
type WalletService struct {
	store    QueryStore
	rails    *gateway.Registry
	settings *PayoutSettingsService
}

func NewWalletService(store QueryStore, rails *gateway.Registry, settings *PayoutSettingsService) *WalletService {
	return &WalletService{store: store, rails: rails, settings: settings}
}

// GetWalletSummary returns one summary per currency the store has ledger
// activity or a balance row in, ordered by currency.
func (s *WalletService) GetWalletSummary(ctx context.Context, storeID uuid.UUID) ([]models.WalletSummary, error) {
	queries := s.store.Queries()
	pgStoreID := repository.ToPgUUID(storeID)

	sums, err := queries.SumLedgerByStore(ctx, pgStoreID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	balances, err := queries.ListSellerBalancesByStore(ctx, pgStoreID)
	if err != nil {
		return nil, fmt.Errorf("list seller balances: %w", err)
	}
	settings, err := s.settings.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	byCurrency := make(map[string]*models.WalletSummary)
	summaryFor := func(currency string) *models.WalletSummary {
		if w, ok := byCurrency[currency]; ok {
			return w
		}
		w := &models.WalletSummary{Currency: currency, NextPayoutAt: settings.NextPayoutAt}
		byCurrency[currency] = w
		return w
	}
	ledger := make(map[string]repository.LedgerSum, len(sums))
	for _, sum := range sums {
		ledger[sum.Currency] = sum
		summaryFor(sum.Currency)
	}
	for _, b := range balances {
		w := summaryFor(b.Currency)
		w.ReservedMicros = b.ReservedMicros
		w.LastPayoutAt = repository.FromNullPgTimestamptz(b.LastPayoutAt)
		w.LastPayoutMicros = b.LastPayoutMicros
	}

	out := make([]models.WalletSummary, 0, len(byCurrency))
	for currency, w := range byCurrency {
		sum := ledger[currency]
		wallet := ComputeWallet(sum.AvailableMicros, sum.PendingMicros, railBalance(ctx, s.rails, storeID, currency))

		w.AvailableMicros = wallet.Available
		w.PendingMicros = wallet.Pending
		w.AmountDueMicros = wallet.AmountDue
		w.ReservedFeesFromPendingMicros = wallet.ReservedFeesFromPending
		w.CurrentBalanceMicros = wallet.CurrentBalance
		w.LedgerAvailableMicros = wallet.LedgerAvailable
		w.ExternalAvailableMicros = wallet.ExternalAvailable
		w.WithdrawableMicros = max(0, wallet.Available-w.ReservedMicros)
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// railBalance asks the currency's rail for its settled balance. Rails
// without the capability, and rails that fail, report nothing.
func railBalance(ctx context.Context, rails *gateway.Registry, storeID uuid.UUID, currency string) *int64 {
	inspector, ok := rails.ForCurrency(currency).(gateway.BalanceInspector)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, externalBalanceTimeout)
	defer cancel()

	amount, err := inspector.AvailableBalance(ctx, storeID, currency)
	if err != nil {
		zap.L().Warn("external balance lookup failed",
			zap.Error(err),
			zap.String("store_id", storeID.String()),
			zap.String("currency", currency),
		)
		return nil
	}
	return &amount
}
