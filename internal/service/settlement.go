package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/gateway"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const settlementBatchSize = 500

// SettlementService promotes pending entries once their hold period has
// elapsed and applies processor corrections.
type SettlementService struct {
	store       QueryStore
	ledger      *LedgerService
	rails       *gateway.Registry
	concurrency int
	lookback    time.Duration
}

func NewSettlementService(store QueryStore, ledger *LedgerService, rails *gateway.Registry, concurrency int, lookback time.Duration) *SettlementService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SettlementService{
		store:       store,
		ledger:      ledger,
		rails:       rails,
		concurrency: concurrency,
		lookback:    lookback,
	}
}

// HoldInput opens a dispute or refund hold on an order.
type HoldInput struct {
	StoreID      uuid.UUID
	Currency     string
	OrderID      uuid.UUID
	Kind         string
	AmountMicros int64
	ExternalRef  string
}

// RefundCompletion is a refund the processor has paid out to the buyer.
type RefundCompletion struct {
	StoreID      uuid.UUID
	Currency     string
	OrderID      uuid.UUID
	AmountMicros int64
	ExternalRef  string
	Description  string
}

// Run performs one reconciliation pass. Every store and currency pair is
// settled in its own transaction; failed pairs are reported together and do
// not stop the others.
func (s *SettlementService) Run(ctx context.Context, now time.Time) (models.SettlementReport, error) {
	var report models.SettlementReport
	var errs error

	applied, err := s.applyAdjustments(ctx, now)
	report.AdjustmentsApplied = applied
	errs = multierr.Append(errs, err)

	lost, err := s.applyLostDisputes(ctx, now)
	report.LostDisputesApplied = lost
	errs = multierr.Append(errs, err)

	keys, err := s.store.Queries().ListDueSettlementKeys(ctx, repository.ToPgTimestamptz(now), settlementBatchSize)
	if err != nil {
		return report, multierr.Append(errs, fmt.Errorf("list due settlement pairs: %w", err))
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			promoted, held, err := s.reconcilePair(ctx, key, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.PairsFailed++
				errs = multierr.Append(errs, fmt.Errorf("store %s %s: %w", repository.FromPgUUID(key.StoreID), key.Currency, err))
				return nil
			}
			report.PairsReconciled++
			report.EntriesPromoted += promoted
			report.EntriesHeld += held
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("settlement run finished",
		zap.Int("adjustments_applied", report.AdjustmentsApplied),
		zap.Int("lost_disputes_applied", report.LostDisputesApplied),
		zap.Int("pairs_reconciled", report.PairsReconciled),
		zap.Int("entries_promoted", report.EntriesPromoted),
		zap.Int("entries_held", report.EntriesHeld),
		zap.Int("pairs_failed", report.PairsFailed),
	)
	return report, errs
}

// reconcilePair locks the balance row, then the due entries, so it serialises
// with ledger appends and payout requests for the same pair.
func (s *SettlementService) reconcilePair(ctx context.Context, key repository.SettlementKey, now time.Time) (int, int, error) {
	var promoted, held int
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		promoted, held = 0, 0
		balanceKey := repository.SellerBalanceKey{StoreID: key.StoreID, Currency: key.Currency}
		if err := qtx.EnsureSellerBalance(ctx, balanceKey); err != nil {
			return fmt.Errorf("ensure seller balance: %w", err)
		}
		if _, err := qtx.GetSellerBalanceForUpdate(ctx, balanceKey); err != nil {
			return fmt.Errorf("lock seller balance: %w", err)
		}

		due, err := qtx.ListDueEntriesForUpdate(ctx, repository.ListDueEntriesForUpdateParams{
			StoreID:  key.StoreID,
			Currency: key.Currency,
			Now:      repository.ToPgTimestamptz(now),
		})
		if err != nil {
			return fmt.Errorf("list due entries: %w", err)
		}

		ids := make([]pgtype.UUID, 0, len(due))
		var total int64
		for _, entry := range due {
			if entry.HoldKind != nil {
				held++
				holdErr := &domain.ReconciliationHoldError{
					EntryID: repository.FromPgUUID(entry.ID),
					OrderID: repository.FromPgUUID(entry.OrderID),
					Kind:    *entry.HoldKind,
				}
				observability.IncrementSettlementHeld(*entry.HoldKind)
				zap.L().Info("pending entry held", zap.Error(holdErr), zap.String("currency", key.Currency))
				continue
			}
			ids = append(ids, entry.ID)
			total += entry.AmountMicros
		}
		if len(ids) == 0 {
			return nil
		}

		rows, err := qtx.MarkEntriesAvailable(ctx, ids)
		if err != nil {
			return fmt.Errorf("promote entries: %w", err)
		}
		if rows != int64(len(ids)) {
			return fmt.Errorf("promote entries affected %d of %d rows", rows, len(ids))
		}
		rows, err = qtx.ApplyBalanceDelta(ctx, repository.ApplyBalanceDeltaParams{
			StoreID:        key.StoreID,
			Currency:       key.Currency,
			AvailableDelta: total,
			PendingDelta:   -total,
		})
		if err != nil {
			return fmt.Errorf("move pending to available: %w", err)
		}
		if err := requireExactlyOne(rows, "move pending to available"); err != nil {
			return err
		}
		promoted = len(ids)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if promoted > 0 {
		observability.AddSettlementPromoted(key.Currency, promoted)
	}
	return promoted, held, nil
}

// applyAdjustments pulls fee corrections from every rail that publishes them.
func (s *SettlementService) applyAdjustments(ctx context.Context, now time.Time) (int, error) {
	applied := 0
	var errs error
	for _, rail := range s.rails.Rails() {
		feed, ok := rail.(gateway.AdjustmentFeed)
		if !ok {
			continue
		}
		adjustments, err := feed.Adjustments(ctx, now.Add(-s.lookback))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rail %s adjustments: %w", rail.Name(), err))
			continue
		}
		for _, adj := range adjustments {
			_, created, err := s.ledger.appendOnce(ctx, AppendEntryInput{
				StoreID:      adj.StoreID,
				Currency:     adj.Currency,
				Type:         domain.EntryFeeAdjustment,
				AmountMicros: adj.AmountMicros,
				OrderID:      adj.OrderID,
				ExternalRef:  adj.ExternalID,
				Description:  adj.Description,
			})
			if errors.Is(err, domain.ErrValidation) {
				zap.L().Warn("processor adjustment rejected",
					zap.Error(err),
					zap.String("rail", rail.Name()),
					zap.String("external_id", adj.ExternalID),
				)
				continue
			}
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("apply adjustment %s: %w", adj.ExternalID, err))
				continue
			}
			if created {
				applied++
			}
		}
	}
	return applied, errs
}

// applyLostDisputes turns each lost dispute into a negative adjustment on the
// order, once. The entry and the applied stamp share a transaction.
func (s *SettlementService) applyLostDisputes(ctx context.Context, now time.Time) (int, error) {
	holds, err := s.store.Queries().ListUnappliedLostHolds(ctx, settlementBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list lost disputes: %w", err)
	}

	applied := 0
	var errs error
	for _, h := range holds {
		var stamped bool
		err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
			stamped = false
			hold, err := qtx.GetLedgerHoldForUpdate(ctx, h.ID)
			if err != nil {
				return fmt.Errorf("lock hold: %w", err)
			}
			if hold.AppliedAt.Valid {
				return nil
			}
			if hold.AmountMicros > 0 {
				holdID := repository.FromPgUUID(hold.ID)
				orderID := repository.FromPgUUID(hold.OrderID)
				in, err := s.ledger.normalize(AppendEntryInput{
					StoreID:      repository.FromPgUUID(hold.StoreID),
					Currency:     hold.Currency,
					Type:         domain.EntryDisputeAdjustment,
					AmountMicros: -hold.AmountMicros,
					Status:       domain.EntryStatusPending,
					AvailableAt:  &now,
					OrderID:      &orderID,
					ExternalRef:  "dispute-lost:" + holdID.String(),
					Description:  "Dispute lost " + hold.ExternalRef,
				}, now)
				if err != nil {
					return err
				}
				_, err = s.ledger.appendTx(ctx, qtx, in)
				if err := suppressDuplicate(err); err != nil {
					return err
				}
			}
			rows, err := qtx.MarkLedgerHoldApplied(ctx, hold.ID)
			if err != nil {
				return fmt.Errorf("mark hold applied: %w", err)
			}
			if err := requireExactlyOne(rows, "mark hold applied"); err != nil {
				return err
			}
			stamped = true
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("hold %s: %w", repository.FromPgUUID(h.ID), err))
			continue
		}
		if stamped {
			applied++
		}
	}
	return applied, errs
}

// OpenHold freezes promotion of an order's pending entries. Reopening the
// same external ref returns the existing hold.
func (s *SettlementService) OpenHold(ctx context.Context, in HoldInput) (models.LedgerHold, error) {
	if in.StoreID == uuid.Nil {
		return models.LedgerHold{}, domain.NewValidationError("store_id", "is required")
	}
	if in.OrderID == uuid.Nil {
		return models.LedgerHold{}, domain.NewValidationError("order_id", "is required")
	}
	if in.Kind != domain.HoldKindDispute && in.Kind != domain.HoldKindRefund {
		return models.LedgerHold{}, domain.NewValidationError("kind", fmt.Sprintf("unknown hold kind %q", in.Kind))
	}
	if in.AmountMicros < 0 {
		return models.LedgerHold{}, domain.NewValidationError("amount", "must not be negative")
	}
	in.ExternalRef = strings.TrimSpace(in.ExternalRef)
	if in.ExternalRef == "" {
		return models.LedgerHold{}, domain.NewValidationError("external_ref", "is required")
	}
	currency, err := domain.NormalizeCurrency(in.Currency, s.ledger.currencies)
	if err != nil {
		return models.LedgerHold{}, err
	}

	var hold repository.LedgerHold
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		hold, err = qtx.InsertLedgerHold(ctx, repository.InsertLedgerHoldParams{
			ID:           repository.ToPgUUID(uuid.New()),
			StoreID:      repository.ToPgUUID(in.StoreID),
			Currency:     currency,
			OrderID:      repository.ToPgUUID(in.OrderID),
			Kind:         in.Kind,
			AmountMicros: in.AmountMicros,
			ExternalRef:  in.ExternalRef,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			observability.IncrementDuplicateEvent("hold_" + in.Kind)
			hold, err = s.lockHold(ctx, qtx, in.StoreID, in.Kind, in.ExternalRef)
			return err
		}
		if err != nil {
			return fmt.Errorf("insert hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.LedgerHold{}, err
	}
	return toLedgerHold(hold), nil
}

// ReleaseHold resolves a hold in the seller's favour.
func (s *SettlementService) ReleaseHold(ctx context.Context, storeID uuid.UUID, kind, externalRef string) (models.LedgerHold, error) {
	return s.resolveHold(ctx, storeID, kind, externalRef, domain.HoldStatusReleased)
}

// MarkDisputeLost resolves a dispute against the seller. The next settlement
// run debits the disputed amount.
func (s *SettlementService) MarkDisputeLost(ctx context.Context, storeID uuid.UUID, externalRef string) (models.LedgerHold, error) {
	return s.resolveHold(ctx, storeID, domain.HoldKindDispute, externalRef, domain.HoldStatusLost)
}

// CompleteRefund debits the refunded amount and releases the refund hold
// opened for it, if any.
func (s *SettlementService) CompleteRefund(ctx context.Context, in RefundCompletion) (models.LedgerEntry, error) {
	if in.AmountMicros <= 0 {
		return models.LedgerEntry{}, domain.NewValidationError("amount", "must be positive")
	}
	if strings.TrimSpace(in.ExternalRef) == "" {
		return models.LedgerEntry{}, domain.NewValidationError("external_ref", "is required")
	}
	orderID := in.OrderID
	entryIn, err := s.ledger.normalize(AppendEntryInput{
		StoreID:      in.StoreID,
		Currency:     in.Currency,
		Type:         domain.EntryRefund,
		AmountMicros: -in.AmountMicros,
		OrderID:      &orderID,
		ExternalRef:  in.ExternalRef,
		Description:  in.Description,
	}, time.Now())
	if err != nil {
		return models.LedgerEntry{}, err
	}

	var entry models.LedgerEntry
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		entry, err = s.ledger.appendTx(ctx, qtx, entryIn)
		if err := suppressDuplicate(err); err != nil {
			return err
		}
		hold, err := s.lockHold(ctx, qtx, in.StoreID, domain.HoldKindRefund, entryIn.ExternalRef)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if hold.Status != domain.HoldStatusOpen {
			return nil
		}
		rows, err := qtx.ResolveLedgerHold(ctx, hold.ID, domain.HoldStatusReleased)
		if err != nil {
			return fmt.Errorf("release refund hold: %w", err)
		}
		return requireExactlyOne(rows, "release refund hold")
	})
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

// resolveHold is idempotent: a hold that is no longer open is returned as is.
func (s *SettlementService) resolveHold(ctx context.Context, storeID uuid.UUID, kind, externalRef, status string) (models.LedgerHold, error) {
	var hold repository.LedgerHold
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		hold, err = s.lockHold(ctx, qtx, storeID, kind, strings.TrimSpace(externalRef))
		if err != nil {
			return err
		}
		if hold.Status != domain.HoldStatusOpen {
			return nil
		}
		rows, err := qtx.ResolveLedgerHold(ctx, hold.ID, status)
		if err != nil {
			return fmt.Errorf("resolve hold: %w", err)
		}
		if err := requireExactlyOne(rows, "resolve hold"); err != nil {
			return err
		}
		hold.Status = status
		hold.ResolvedAt = repository.ToPgTimestamptz(time.Now())
		return nil
	})
	if err != nil {
		return models.LedgerHold{}, err
	}
	return toLedgerHold(hold), nil
}

func (s *SettlementService) lockHold(ctx context.Context, qtx *repository.Queries, storeID uuid.UUID, kind, externalRef string) (repository.LedgerHold, error) {
	hold, err := qtx.GetLedgerHoldByExternalRefForUpdate(ctx, repository.GetLedgerHoldByExternalRefParams{
		StoreID:     repository.ToPgUUID(storeID),
		Kind:        kind,
		ExternalRef: externalRef,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.LedgerHold{}, fmt.Errorf("%s hold %q: %w", kind, externalRef, domain.ErrNotFound)
	}
	if err != nil {
		return repository.LedgerHold{}, fmt.Errorf("lock hold: %w", err)
	}
	return hold, nil
}
