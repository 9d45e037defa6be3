package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/models"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/pagination"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LedgerService is the append-only record of every monetary event of a store.
type LedgerService struct {
	store      QueryStore
	reader     EntryReader
	currencies []string
	holdPeriod time.Duration
}

func NewLedgerService(store QueryStore, reader EntryReader, currencies []string, holdPeriod time.Duration) *LedgerService {
	return &LedgerService{
		store:      store,
		reader:     reader,
		currencies: currencies,
		holdPeriod: holdPeriod,
	}
}

// AppendEntryInput describes one ledger event. Status and AvailableAt default
// from the entry type and the hold period when left empty.
type AppendEntryInput struct {
	StoreID      uuid.UUID
	Currency     string
	Type         domain.EntryType
	AmountMicros int64
	Status       domain.EntryStatus
	AvailableAt  *time.Time
	OrderID      *uuid.UUID
	PayoutID     *uuid.UUID
	ExternalRef  string
	Description  string
}

// SaleSettlement is a captured checkout payment with its fee breakdown.
type SaleSettlement struct {
	StoreID             uuid.UUID
	Currency            string
	OrderID             uuid.UUID
	ExternalRef         string
	GrossMicros         int64
	PlatformFeeMicros   int64
	ProcessorFeeMicros  int64
	ShippingLabelMicros int64
	SettledAt           time.Time
	Description         string
}

// ActivityFilter narrows List and Export. Zero values match everything.
type ActivityFilter struct {
	Types    []domain.EntryType
	Currency string
	Status   domain.EntryStatus
	From     *time.Time
	To       *time.Time
	Query    string
}

func (s *LedgerService) HoldPeriod() time.Duration { return s.holdPeriod }

// Append validates and writes one entry. Replaying an entry with the same
// (store, type, external ref) returns the stored entry and changes nothing.
func (s *LedgerService) Append(ctx context.Context, in AppendEntryInput) (models.LedgerEntry, error) {
	entry, _, err := s.appendOnce(ctx, in)
	return entry, err
}

// appendOnce is Append that also reports whether a new entry was written.
func (s *LedgerService) appendOnce(ctx context.Context, in AppendEntryInput) (models.LedgerEntry, bool, error) {
	in, err := s.normalize(in, time.Now())
	if err != nil {
		return models.LedgerEntry{}, false, err
	}

	var entry models.LedgerEntry
	created := true
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		entry, err = s.appendTx(ctx, qtx, in)
		if errors.Is(err, domain.ErrDuplicateEvent) {
			created = false
		}
		return suppressDuplicate(err)
	})
	if err != nil {
		return models.LedgerEntry{}, false, err
	}
	return entry, created, nil
}

// RecordSale writes the sale credit and its fees in one transaction. Each
// line is keyed "<externalRef>:<type>" so a redelivered event is absorbed.
func (s *LedgerService) RecordSale(ctx context.Context, sale SaleSettlement) ([]models.LedgerEntry, error) {
	if sale.StoreID == uuid.Nil {
		return nil, domain.NewValidationError("store_id", "is required")
	}
	if sale.OrderID == uuid.Nil {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	sale.ExternalRef = strings.TrimSpace(sale.ExternalRef)
	if sale.ExternalRef == "" {
		return nil, domain.NewValidationError("external_ref", "is required")
	}
	if sale.GrossMicros <= 0 {
		return nil, domain.NewValidationError("gross_micros", "must be positive")
	}
	for field, v := range map[string]int64{
		"platform_fee_micros":   sale.PlatformFeeMicros,
		"processor_fee_micros":  sale.ProcessorFeeMicros,
		"shipping_label_micros": sale.ShippingLabelMicros,
	} {
		if v < 0 {
			return nil, domain.NewValidationError(field, "must not be negative")
		}
	}
	if sale.SettledAt.IsZero() {
		sale.SettledAt = time.Now()
	}
	availableAt := sale.SettledAt.Add(s.holdPeriod)
	orderID := sale.OrderID

	lines := []AppendEntryInput{{Type: domain.EntrySaleCredit, AmountMicros: sale.GrossMicros}}
	if sale.PlatformFeeMicros > 0 {
		lines = append(lines, AppendEntryInput{Type: domain.EntryPlatformFee, AmountMicros: -sale.PlatformFeeMicros})
	}
	if sale.ProcessorFeeMicros > 0 {
		lines = append(lines, AppendEntryInput{Type: domain.EntryProcessorFee, AmountMicros: -sale.ProcessorFeeMicros})
	}
	if sale.ShippingLabelMicros > 0 {
		lines = append(lines, AppendEntryInput{Type: domain.EntryShippingLabel, AmountMicros: -sale.ShippingLabelMicros})
	}

	now := time.Now()
	for i := range lines {
		lines[i].StoreID = sale.StoreID
		lines[i].Currency = sale.Currency
		lines[i].OrderID = &orderID
		lines[i].ExternalRef = sale.ExternalRef + ":" + string(lines[i].Type)
		lines[i].Description = sale.Description
		if lines[i].Type.DefaultStatus() == domain.EntryStatusPending {
			lines[i].AvailableAt = &availableAt
		}
		normalized, err := s.normalize(lines[i], now)
		if err != nil {
			return nil, err
		}
		lines[i] = normalized
	}

	entries := make([]models.LedgerEntry, 0, len(lines))
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		entries = entries[:0]
		for _, line := range lines {
			entry, err := s.appendTx(ctx, qtx, line)
			if err := suppressDuplicate(err); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns one page of activity, newest first.
func (s *LedgerService) List(ctx context.Context, storeID uuid.UUID, filter ActivityFilter, page pagination.Params) (models.ActivityPage, error) {
	cursor, err := pagination.Decode(page.Cursor)
	if err != nil {
		return models.ActivityPage{}, domain.NewValidationError("cursor", err.Error())
	}
	f, err := s.entryFilter(filter)
	if err != nil {
		return models.ActivityPage{}, err
	}
	limit := pagination.NormalizeLimit(page.Limit)

	rows, err := s.reader.ListEntries(ctx, storeID, f, cursor, limit)
	if err != nil {
		return models.ActivityPage{}, err
	}

	out := models.ActivityPage{Entries: make([]models.LedgerEntry, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		out.NextCursor = pagination.Cursor{
			CreatedAt: last.CreatedAt.Time,
			ID:        repository.FromPgUUID(last.ID),
		}.Encode()
	}
	for _, row := range rows {
		out.Entries = append(out.Entries, toLedgerEntry(row))
	}
	return out, nil
}

// Export streams every matching entry to fn without loading the full set.
func (s *LedgerService) Export(ctx context.Context, storeID uuid.UUID, filter ActivityFilter, fn func(models.LedgerEntry) error) error {
	f, err := s.entryFilter(filter)
	if err != nil {
		return err
	}
	return s.reader.StreamEntries(ctx, storeID, f, func(row repository.LedgerEntry) error {
		return fn(toLedgerEntry(row))
	})
}

func (s *LedgerService) entryFilter(filter ActivityFilter) (repository.EntryFilter, error) {
	out := repository.EntryFilter{
		Status: string(filter.Status),
		From:   filter.From,
		To:     filter.To,
		Query:  strings.TrimSpace(filter.Query),
	}
	for _, t := range filter.Types {
		if !t.IsValid() {
			return out, domain.NewValidationError("type", fmt.Sprintf("unknown entry type %q", t))
		}
		out.Types = append(out.Types, string(t))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return out, domain.NewValidationError("status", fmt.Sprintf("unknown entry status %q", filter.Status))
	}
	if filter.Currency != "" {
		code, err := domain.NormalizeCurrency(filter.Currency, s.currencies)
		if err != nil {
			return out, err
		}
		out.Currency = code
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return out, domain.NewValidationError("to", "must not be before from")
	}
	return out, nil
}

// normalize rejects malformed input and fills in defaults. Nothing is written.
func (s *LedgerService) normalize(in AppendEntryInput, now time.Time) (AppendEntryInput, error) {
	if in.StoreID == uuid.Nil {
		return in, domain.NewValidationError("store_id", "is required")
	}
	if !in.Type.IsValid() {
		return in, domain.NewValidationError("type", fmt.Sprintf("unknown entry type %q", in.Type))
	}
	if err := in.Type.ValidateAmount(in.AmountMicros); err != nil {
		return in, err
	}
	code, err := domain.NormalizeCurrency(in.Currency, s.currencies)
	if err != nil {
		return in, err
	}
	in.Currency = code

	if in.Status == "" {
		in.Status = in.Type.DefaultStatus()
	}
	switch in.Status {
	case domain.EntryStatusPending:
		if in.AvailableAt == nil {
			at := now.Add(s.holdPeriod)
			in.AvailableAt = &at
		}
	case domain.EntryStatusAvailable:
		if in.AvailableAt == nil {
			in.AvailableAt = &now
		}
	default:
		return in, domain.NewValidationError("status", fmt.Sprintf("entries cannot be written as %q", in.Status))
	}

	in.ExternalRef = strings.TrimSpace(in.ExternalRef)
	if in.ExternalRef == "" {
		in.ExternalRef = "entry:" + uuid.NewString()
	}
	return in, nil
}

// appendTx writes a normalized entry inside qtx. The balance row is locked
// first so balanceAfter and the balance delta see a consistent total. A
// replayed event yields the stored entry and a *domain.DuplicateEventError.
func (s *LedgerService) appendTx(ctx context.Context, qtx *repository.Queries, in AppendEntryInput) (models.LedgerEntry, error) {
	key := repository.SellerBalanceKey{StoreID: repository.ToPgUUID(in.StoreID), Currency: in.Currency}
	if err := qtx.EnsureSellerBalance(ctx, key); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("ensure seller balance: %w", err)
	}
	balance, err := qtx.GetSellerBalanceForUpdate(ctx, key)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("lock seller balance: %w", err)
	}

	row, err := qtx.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
		ID:                 repository.ToPgUUID(uuid.New()),
		StoreID:            key.StoreID,
		Currency:           in.Currency,
		Type:               string(in.Type),
		AmountMicros:       in.AmountMicros,
		Status:             string(in.Status),
		AvailableAt:        repository.ToNullPgTimestamptz(in.AvailableAt),
		BalanceAfterMicros: balance.AvailableMicros + balance.PendingMicros + in.AmountMicros,
		OrderID:            repository.ToNullPgUUID(in.OrderID),
		PayoutID:           repository.ToNullPgUUID(in.PayoutID),
		ExternalRef:        in.ExternalRef,
		Description:        in.Description,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		existing, getErr := qtx.GetLedgerEntryByExternalRef(ctx, repository.GetLedgerEntryByExternalRefParams{
			StoreID:     key.StoreID,
			Type:        string(in.Type),
			ExternalRef: in.ExternalRef,
		})
		if getErr != nil {
			return models.LedgerEntry{}, fmt.Errorf("load existing ledger entry: %w", getErr)
		}
		entry := toLedgerEntry(existing)
		return entry, &domain.DuplicateEventError{
			StoreID:     in.StoreID,
			Type:        in.Type,
			ExternalRef: in.ExternalRef,
			ExistingID:  entry.ID,
		}
	}
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}

	delta := repository.ApplyBalanceDeltaParams{StoreID: key.StoreID, Currency: in.Currency}
	if in.Status == domain.EntryStatusPending {
		delta.PendingDelta = in.AmountMicros
	} else {
		delta.AvailableDelta = in.AmountMicros
	}
	rows, err := qtx.ApplyBalanceDelta(ctx, delta)
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("apply balance delta: %w", err)
	}
	if err := requireExactlyOne(rows, "apply balance delta"); err != nil {
		return models.LedgerEntry{}, err
	}
	return toLedgerEntry(row), nil
}

// suppressDuplicate logs and swallows a replayed event; other errors pass through.
func suppressDuplicate(err error) error {
	var dup *domain.DuplicateEventError
	if !errors.As(err, &dup) {
		return err
	}
	observability.IncrementDuplicateEvent(string(dup.Type))
	zap.L().Info("duplicate ledger event suppressed",
		zap.String("store_id", dup.StoreID.String()),
		zap.String("type", string(dup.Type)),
		zap.String("external_ref", dup.ExternalRef),
		zap.String("entry_id", dup.ExistingID.String()),
	)
	return nil
}
