package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/gateway"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	actorSystem    = "system"
	actorScheduler = "scheduler"
)

// PayoutService moves a seller's withdrawal from reservation through the
// external transfer to a terminal state.
type PayoutService struct {
	store       QueryStore
	rails       *gateway.Registry
	ledger      *LedgerService
	settings    *PayoutSettingsService
	audit       *AuditService
	currencies  []string
	staleWindow time.Duration
}

func NewPayoutService(store QueryStore, rails *gateway.Registry, ledger *LedgerService, settings *PayoutSettingsService, currencies []string, staleWindow time.Duration) *PayoutService {
	return &PayoutService{
		store:       store,
		rails:       rails,
		ledger:      ledger,
		settings:    settings,
		audit:       NewAuditService(store),
		currencies:  currencies,
		staleWindow: staleWindow,
	}
}

// RequestPayoutInput holds the parameters for creating a payout.
type RequestPayoutInput struct {
	StoreID      uuid.UUID
	AmountMicros int64
	Currency     string
	ReferenceID  string
	RequestedBy  string
}

// RequestPayout reserves amount from the store's available balance and queues
// a pending payout. Repeating a request with the same reference returns the
// payout it created.
func (s *PayoutService) RequestPayout(ctx context.Context, in RequestPayoutInput) (models.Payout, error) {
	if in.StoreID == uuid.Nil {
		return models.Payout{}, domain.NewValidationError("store_id", "is required")
	}
	if in.AmountMicros <= 0 {
		return models.Payout{}, domain.NewValidationError("amount", "must be positive")
	}
	currency, err := domain.NormalizeCurrency(in.Currency, s.currencies)
	if err != nil {
		return models.Payout{}, err
	}
	in.Currency = currency
	in.ReferenceID = strings.TrimSpace(in.ReferenceID)
	if in.ReferenceID == "" {
		in.ReferenceID = "req:" + uuid.NewString()
	}
	if in.RequestedBy == "" {
		in.RequestedBy = actorSystem
	}

	if existing, ok, err := s.payoutByReference(ctx, in); err != nil || ok {
		return existing, err
	}

	external := railBalance(ctx, s.rails, in.StoreID, in.Currency)
	var created repository.Payout
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		created, err = s.requestPayoutTx(ctx, qtx, in, external)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "payouts_reference_key" {
			existing, ok, lookupErr := s.payoutByReference(ctx, in)
			if lookupErr != nil {
				return models.Payout{}, lookupErr
			}
			if ok {
				return existing, nil
			}
		}
		return models.Payout{}, err
	}
	return toPayout(created), nil
}

func (s *PayoutService) payoutByReference(ctx context.Context, in RequestPayoutInput) (models.Payout, bool, error) {
	row, err := s.store.Queries().GetPayoutByReference(ctx, repository.ToPgUUID(in.StoreID), in.ReferenceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payout{}, false, nil
	}
	if err != nil {
		return models.Payout{}, false, fmt.Errorf("get payout by reference: %w", err)
	}
	if row.AmountMicros != in.AmountMicros || row.Currency != in.Currency {
		return models.Payout{}, false, &domain.ValidationError{
			Field:   "reference_id",
			Reason:  "already used for a different payout",
			Details: map[string]any{"payout_id": repository.FromPgUUID(row.ID).String()},
		}
	}
	return toPayout(row), true, nil
}

// requestPayoutTx locks the balance row before reading it, so a concurrent
// request for the same store and currency sees this reservation. A rail
// reported balance caps what can be reserved the same way it caps the wallet.
func (s *PayoutService) requestPayoutTx(ctx context.Context, qtx *repository.Queries, in RequestPayoutInput, external *int64) (repository.Payout, error) {
	key := repository.SellerBalanceKey{StoreID: repository.ToPgUUID(in.StoreID), Currency: in.Currency}

	minimum, err := s.settings.minimumAmount(ctx, qtx, key.StoreID)
	if err != nil {
		return repository.Payout{}, err
	}
	if in.AmountMicros < minimum {
		return repository.Payout{}, &domain.ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be at least %s", domain.NewMoney(minimum, in.Currency)),
			Details: map[string]any{
				"amount_micros":  in.AmountMicros,
				"minimum_micros": minimum,
				"currency":       in.Currency,
			},
		}
	}

	if err := qtx.EnsureSellerBalance(ctx, key); err != nil {
		return repository.Payout{}, fmt.Errorf("ensure seller balance: %w", err)
	}
	balance, err := qtx.GetSellerBalanceForUpdate(ctx, key)
	if err != nil {
		return repository.Payout{}, fmt.Errorf("lock seller balance: %w", err)
	}
	withdrawable := balance.AvailableMicros - balance.ReservedMicros
	if external != nil {
		withdrawable = min(withdrawable, max(0, *external)-balance.ReservedMicros)
	}
	if in.AmountMicros > withdrawable {
		return repository.Payout{}, &domain.InsufficientBalanceError{
			Amount:    in.AmountMicros,
			Available: max(0, withdrawable),
			Currency:  in.Currency,
		}
	}

	rows, err := qtx.ApplyBalanceDelta(ctx, repository.ApplyBalanceDeltaParams{
		StoreID:       key.StoreID,
		Currency:      key.Currency,
		ReservedDelta: in.AmountMicros,
	})
	if err != nil {
		return repository.Payout{}, fmt.Errorf("reserve payout funds: %w", err)
	}
	if err := requireExactlyOne(rows, "reserve payout funds"); err != nil {
		return repository.Payout{}, err
	}

	rail := s.rails.ForCurrency(in.Currency)
	if rail == nil {
		return repository.Payout{}, domain.NewValidationError("currency", "no payout rail configured")
	}
	payout, err := qtx.InsertPayout(ctx, repository.InsertPayoutParams{
		ID:           repository.ToPgUUID(uuid.New()),
		StoreID:      key.StoreID,
		Currency:     in.Currency,
		AmountMicros: in.AmountMicros,
		Status:       domain.PayoutStatusPending,
		Rail:         rail.Name(),
		ReferenceID:  in.ReferenceID,
		RequestedBy:  in.RequestedBy,
	})
	if err != nil {
		return repository.Payout{}, fmt.Errorf("insert payout: %w", err)
	}

	if err := s.audit.Write(ctx, qtx, domain.AuditEntityPayout, repository.FromPgUUID(payout.ID), in.RequestedBy, "requested", "", domain.PayoutStatusPending, nil); err != nil {
		return repository.Payout{}, err
	}
	observability.IncrementPayoutTransition("none", domain.PayoutStatusPending)
	return payout, nil
}

// ProcessPayout sends a pending payout to its rail. Rail rejections end in
// failed; transient rail errors leave the payout processing for the stale
// recovery pass to re-drive with the same idempotency key.
func (s *PayoutService) ProcessPayout(ctx context.Context, payoutID uuid.UUID) (models.Payout, error) {
	var claimed repository.Payout
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		claimed, err = s.claimTx(ctx, qtx, repository.ToPgUUID(payoutID))
		return err
	})
	if err != nil {
		return models.Payout{}, err
	}

	if err := s.drive(ctx, claimed); err != nil {
		return models.Payout{}, err
	}
	return s.GetPayout(ctx, payoutID)
}

// ProcessPayouts re-drives stale processing payouts, then claims and drives a
// batch of pending programmatic payouts.
func (s *PayoutService) ProcessPayouts(ctx context.Context, batchSize int32) error {
	stale, err := s.claimStale(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		zap.L().Warn("re-driving stale processing payouts", zap.Int("count", len(stale)))
	}

	claimed, err := s.claimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	for _, payout := range append(stale, claimed...) {
		if err := s.drive(ctx, payout); err != nil {
			return err
		}
	}
	s.reportOpenPayouts(ctx)
	return nil
}

func (s *PayoutService) claimTx(ctx context.Context, qtx *repository.Queries, id pgtype.UUID) (repository.Payout, error) {
	payout, err := qtx.GetPayoutForUpdate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Payout{}, fmt.Errorf("payout %s: %w", repository.FromPgUUID(id), domain.ErrNotFound)
	}
	if err != nil {
		return repository.Payout{}, fmt.Errorf("lock payout: %w", err)
	}
	if payout.Status != domain.PayoutStatusPending {
		return repository.Payout{}, &domain.InvalidStateTransitionError{
			Entity: domain.AuditEntityPayout,
			From:   payout.Status,
			To:     domain.PayoutStatusProcessing,
		}
	}
	if s.railKind(payout.Rail) == domain.RailKindManual {
		return repository.Payout{}, &domain.InvalidStateTransitionError{
			Entity: domain.AuditEntityPayout,
			From:   payout.Status,
			To:     domain.PayoutStatusProcessing,
			Reason: "rail requires operator confirmation",
		}
	}
	if _, ok := s.rails.Transferer(payout.Rail); !ok {
		return repository.Payout{}, fmt.Errorf("payout rail %q is not registered", payout.Rail)
	}

	if err := transitionPayoutState(ctx, qtx, s.audit, payout, payoutTransition{
		next:   domain.PayoutStatusProcessing,
		actor:  actorSystem,
		action: "processing_started",
	}); err != nil {
		return repository.Payout{}, err
	}
	payout.Status = domain.PayoutStatusProcessing
	return payout, nil
}

func (s *PayoutService) claimPending(ctx context.Context, batchSize int32) ([]repository.Payout, error) {
	rails := s.rails.ProgrammaticRailNames()
	if len(rails) == 0 {
		return nil, nil
	}
	var payouts []repository.Payout
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payouts = payouts[:0]
		ids, err := qtx.ListPendingPayoutIDs(ctx, rails, batchSize)
		if err != nil {
			return fmt.Errorf("list pending payouts: %w", err)
		}
		for _, id := range ids {
			payout, err := s.claimTx(ctx, qtx, id)
			if err != nil {
				return err
			}
			payouts = append(payouts, payout)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

// claimStale touches processing payouts whose transfer outcome was never
// recorded so that no other worker re-drives them in the same window.
func (s *PayoutService) claimStale(ctx context.Context, batchSize int32) ([]repository.Payout, error) {
	cutoff := time.Now().Add(-s.staleWindow)
	var stale []repository.Payout
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		stale, err = qtx.ListStaleProcessingPayouts(ctx, repository.ToPgTimestamptz(cutoff), batchSize)
		if err != nil {
			return fmt.Errorf("list stale processing payouts: %w", err)
		}
		for _, payout := range stale {
			rows, err := qtx.TouchProcessingPayout(ctx, payout.ID)
			if err != nil {
				return fmt.Errorf("touch stale payout %s: %w", repository.FromPgUUID(payout.ID), err)
			}
			if err := requireExactlyOne(rows, "touch stale payout"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

// drive calls the rail with no database lock held and records the outcome.
// Only context cancellation is returned; rail errors are recorded or logged.
func (s *PayoutService) drive(ctx context.Context, payout repository.Payout) error {
	payoutID := repository.FromPgUUID(payout.ID)
	transferer, ok := s.rails.Transferer(payout.Rail)
	if !ok {
		zap.L().Error("payout rail disappeared while processing", zap.String("payout_id", payoutID.String()), zap.String("rail", payout.Rail))
		return nil
	}

	ref, err := transferer.InitiateTransfer(ctx, gateway.TransferRequest{
		IdempotencyKey: payoutID.String(),
		StoreID:        repository.FromPgUUID(payout.StoreID),
		AmountMicros:   payout.AmountMicros,
		Currency:       payout.Currency,
	})
	switch {
	case err == nil:
		if err := s.complete(ctx, payoutID, ref, actorSystem, "transfer_completed"); err != nil {
			zap.L().Error("transfer accepted but completion failed; payout stays processing",
				zap.Error(err),
				zap.String("payout_id", payoutID.String()),
				zap.String("external_transfer_ref", ref),
			)
		}
		return nil
	case errors.Is(err, gateway.ErrRejected):
		transferErr := &domain.ExternalTransferError{Rail: payout.Rail, Err: err}
		if err := s.fail(ctx, payoutID, transferErr.Error(), actorSystem, "transfer_rejected"); err != nil {
			zap.L().Error("failed to record rejected transfer", zap.Error(err), zap.String("payout_id", payoutID.String()))
		}
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		fallthrough
	default:
		zap.L().Warn("transfer outcome unknown; payout left processing",
			zap.Error(err),
			zap.String("payout_id", payoutID.String()),
			zap.String("rail", payout.Rail),
		)
		return nil
	}
}

// complete debits the ledger once for the payout and releases its reservation.
// A payout already completed is left untouched.
func (s *PayoutService) complete(ctx context.Context, payoutID uuid.UUID, externalRef, actor, action string) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payout, err := s.lockPayout(ctx, qtx, payoutID)
		if err != nil {
			return err
		}
		if payout.Status == domain.PayoutStatusCompleted {
			return nil
		}
		return s.completeTx(ctx, qtx, payout, externalRef, actor, action)
	})
}

func (s *PayoutService) completeTx(ctx context.Context, qtx *repository.Queries, payout repository.Payout, externalRef, actor, action string) error {
	payoutID := repository.FromPgUUID(payout.ID)
	var ref *string
	if externalRef != "" {
		ref = &externalRef
	}
	if err := transitionPayoutState(ctx, qtx, s.audit, payout, payoutTransition{
		next:        domain.PayoutStatusCompleted,
		actor:       actor,
		action:      action,
		externalRef: ref,
	}); err != nil {
		return err
	}

	_, err := s.ledger.appendTx(ctx, qtx, AppendEntryInput{
		StoreID:      repository.FromPgUUID(payout.StoreID),
		Currency:     payout.Currency,
		Type:         domain.EntryPayoutDebit,
		AmountMicros: -payout.AmountMicros,
		Status:       domain.EntryStatusAvailable,
		AvailableAt:  timePtr(time.Now()),
		PayoutID:     &payoutID,
		ExternalRef:  "payout:" + payoutID.String(),
		Description:  "Payout " + payoutID.String(),
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		return fmt.Errorf("payout %s already has a ledger debit", payoutID)
	}
	if err != nil {
		return err
	}

	rows, err := qtx.ApplyBalanceDelta(ctx, repository.ApplyBalanceDeltaParams{
		StoreID:       payout.StoreID,
		Currency:      payout.Currency,
		ReservedDelta: -payout.AmountMicros,
	})
	if err != nil {
		return fmt.Errorf("release payout reservation: %w", err)
	}
	if err := requireExactlyOne(rows, "release payout reservation"); err != nil {
		return err
	}

	now := time.Now()
	rows, err = qtx.RecordLastPayout(ctx, repository.RecordLastPayoutParams{
		StoreID:          payout.StoreID,
		Currency:         payout.Currency,
		LastPayoutAt:     repository.ToPgTimestamptz(now),
		LastPayoutMicros: payout.AmountMicros,
	})
	if err != nil {
		return fmt.Errorf("record last payout: %w", err)
	}
	if err := requireExactlyOne(rows, "record last payout"); err != nil {
		return err
	}
	return s.settings.advance(ctx, qtx, payout.StoreID, now)
}

// fail records a terminal failure and releases the reservation. The ledger
// is not touched.
func (s *PayoutService) fail(ctx context.Context, payoutID uuid.UUID, reason, actor, action string) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payout, err := s.lockPayout(ctx, qtx, payoutID)
		if err != nil {
			return err
		}
		if payout.Status == domain.PayoutStatusFailed {
			return nil
		}
		return s.releaseTx(ctx, qtx, payout, payoutTransition{
			next:          domain.PayoutStatusFailed,
			actor:         actor,
			action:        action,
			failureReason: &reason,
		})
	})
}

func (s *PayoutService) releaseTx(ctx context.Context, qtx *repository.Queries, payout repository.Payout, t payoutTransition) error {
	if err := transitionPayoutState(ctx, qtx, s.audit, payout, t); err != nil {
		return err
	}
	rows, err := qtx.ApplyBalanceDelta(ctx, repository.ApplyBalanceDeltaParams{
		StoreID:       payout.StoreID,
		Currency:      payout.Currency,
		ReservedDelta: -payout.AmountMicros,
	})
	if err != nil {
		return fmt.Errorf("release payout reservation: %w", err)
	}
	return requireExactlyOne(rows, "release payout reservation")
}

// CancelPayout withdraws a payout that has not been sent yet.
func (s *PayoutService) CancelPayout(ctx context.Context, payoutID uuid.UUID, actor string) (models.Payout, error) {
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payout, err := s.lockPayout(ctx, qtx, payoutID)
		if err != nil {
			return err
		}
		return s.releaseTx(ctx, qtx, payout, payoutTransition{
			next:   domain.PayoutStatusCanceled,
			actor:  actor,
			action: "canceled",
		})
	})
	if err != nil {
		return models.Payout{}, err
	}
	return s.GetPayout(ctx, payoutID)
}

// ConfirmManualPayout records an off-platform transfer the operator has made.
func (s *PayoutService) ConfirmManualPayout(ctx context.Context, payoutID uuid.UUID, actor, externalRef string) (models.Payout, error) {
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payout, err := s.lockManualPending(ctx, qtx, payoutID, domain.PayoutStatusCompleted)
		if err != nil {
			return err
		}
		return s.completeTx(ctx, qtx, payout, strings.TrimSpace(externalRef), actor, "manual_confirmed")
	})
	if err != nil {
		return models.Payout{}, err
	}
	return s.GetPayout(ctx, payoutID)
}

// RejectManualPayout fails a manual payout the operator could not send.
func (s *PayoutService) RejectManualPayout(ctx context.Context, payoutID uuid.UUID, actor, reason string) (models.Payout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Payout{}, domain.NewValidationError("reason", "is required")
	}
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payout, err := s.lockManualPending(ctx, qtx, payoutID, domain.PayoutStatusFailed)
		if err != nil {
			return err
		}
		return s.releaseTx(ctx, qtx, payout, payoutTransition{
			next:          domain.PayoutStatusFailed,
			actor:         actor,
			action:        "manual_rejected",
			failureReason: &reason,
		})
	})
	if err != nil {
		return models.Payout{}, err
	}
	return s.GetPayout(ctx, payoutID)
}

func (s *PayoutService) lockManualPending(ctx context.Context, qtx *repository.Queries, payoutID uuid.UUID, next string) (repository.Payout, error) {
	payout, err := s.lockPayout(ctx, qtx, payoutID)
	if err != nil {
		return repository.Payout{}, err
	}
	if s.railKind(payout.Rail) != domain.RailKindManual {
		return repository.Payout{}, &domain.InvalidStateTransitionError{
			Entity: domain.AuditEntityPayout,
			From:   payout.Status,
			To:     next,
			Reason: "rail settles programmatically",
		}
	}
	if payout.Status != domain.PayoutStatusPending {
		return repository.Payout{}, &domain.InvalidStateTransitionError{
			Entity: domain.AuditEntityPayout,
			From:   payout.Status,
			To:     next,
		}
	}
	return payout, nil
}

func (s *PayoutService) lockPayout(ctx context.Context, qtx *repository.Queries, payoutID uuid.UUID) (repository.Payout, error) {
	payout, err := qtx.GetPayoutForUpdate(ctx, repository.ToPgUUID(payoutID))
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.Payout{}, fmt.Errorf("payout %s: %w", payoutID, domain.ErrNotFound)
	}
	if err != nil {
		return repository.Payout{}, fmt.Errorf("lock payout: %w", err)
	}
	return payout, nil
}

// railKind reports how a rail settles. Unknown rails are treated as programmatic.
func (s *PayoutService) railKind(name string) string {
	for _, rail := range s.rails.Rails() {
		if rail.Name() == name {
			return rail.Kind()
		}
	}
	return domain.RailKindProgrammatic
}

// GetPayout retrieves a payout by ID.
func (s *PayoutService) GetPayout(ctx context.Context, payoutID uuid.UUID) (models.Payout, error) {
	row, err := s.store.Queries().GetPayout(ctx, repository.ToPgUUID(payoutID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payout{}, fmt.Errorf("payout %s: %w", payoutID, domain.ErrNotFound)
	}
	if err != nil {
		return models.Payout{}, fmt.Errorf("get payout: %w", err)
	}
	return toPayout(row), nil
}

// ListPayouts returns a store's payouts, newest first.
func (s *PayoutService) ListPayouts(ctx context.Context, storeID uuid.UUID, limit, offset int32) ([]models.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.store.Queries().ListPayoutsByStore(ctx, repository.ListPayoutsByStoreParams{
		StoreID: repository.ToPgUUID(storeID),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	out := make([]models.Payout, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPayout(row))
	}
	return out, nil
}

// History returns the audit trail of a payout.
func (s *PayoutService) History(ctx context.Context, payoutID uuid.UUID) ([]repository.AuditLog, error) {
	return s.audit.History(ctx, domain.AuditEntityPayout, payoutID)
}

// RunAutomaticPayouts requests a payout of the full withdrawable balance for
// every automatic store that is due, then advances its next payout date. The
// per-day reference makes a rerun on the same day a no-op.
func (s *PayoutService) RunAutomaticPayouts(ctx context.Context, now time.Time, limit int32) (int, error) {
	queries := s.store.Queries()
	due, err := queries.ListDueAutomaticPayoutSettings(ctx, repository.ToPgTimestamptz(now), limit)
	if err != nil {
		return 0, fmt.Errorf("list due payout settings: %w", err)
	}

	requested := 0
	var errs error
	for _, setting := range due {
		storeID := repository.FromPgUUID(setting.StoreID)
		balances, err := queries.ListSellerBalancesByStore(ctx, setting.StoreID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: list balances: %w", storeID, err))
			continue
		}
		for _, b := range balances {
			amount := b.AvailableMicros - b.ReservedMicros
			if amount <= 0 || amount < setting.MinimumAmountMicros {
				continue
			}
			_, err := s.RequestPayout(ctx, RequestPayoutInput{
				StoreID:      storeID,
				AmountMicros: amount,
				Currency:     b.Currency,
				ReferenceID:  fmt.Sprintf("auto:%s:%s:%s", storeID, b.Currency, now.Format(time.DateOnly)),
				RequestedBy:  actorScheduler,
			})
			switch {
			case err == nil:
				requested++
			case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrValidation):
				zap.L().Info("automatic payout skipped",
					zap.Error(err),
					zap.String("store_id", storeID.String()),
					zap.String("currency", b.Currency),
				)
			default:
				errs = multierr.Append(errs, fmt.Errorf("store %s %s: %w", storeID, b.Currency, err))
			}
		}

		next := scheduleConfig(setting).Next(&now, now)
		if _, err := queries.UpdateNextPayoutAt(ctx, setting.StoreID, repository.ToPgTimestamptz(next)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: advance next payout date: %w", storeID, err))
		}
	}
	return requested, errs
}

func (s *PayoutService) reportOpenPayouts(ctx context.Context) {
	queries := s.store.Queries()
	for _, status := range []string{domain.PayoutStatusPending, domain.PayoutStatusProcessing} {
		n, err := queries.CountPayoutsByStatus(ctx, status)
		if err != nil {
			zap.L().Warn("count open payouts failed", zap.Error(err), zap.String("status", status))
			continue
		}
		observability.SetOpenPayouts(status, n)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
