package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/seller-payouts/internal/pagination"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the ledger queries whose WHERE clause depends on caller filters.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// EntryFilter narrows a store's ledger activity. Zero values match everything.
type EntryFilter struct {
	Types    []string
	Currency string
	Status   string
	From     *time.Time
	To       *time.Time
	Query    string
}

func (f EntryFilter) where(storeID uuid.UUID) (string, []any) {
	clauses := []string{"store_id = $1"}
	args := []any{ToPgUUID(storeID)}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if len(f.Types) > 0 {
		add("type = ANY($%d::text[])", f.Types)
	}
	if f.Currency != "" {
		add("currency = $%d", f.Currency)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", ToPgTimestamptz(*f.From))
	}
	if f.To != nil {
		add("created_at < $%d", ToPgTimestamptz(*f.To))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add("(description ILIKE $%[1]d OR order_id::text ILIKE $%[1]d OR external_ref ILIKE $%[1]d)", "%"+escapeLike(q)+"%")
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListEntries returns up to limit entries newest-first, starting after cursor.
// It fetches one extra row so callers can tell whether another page exists.
func (r *Repository) ListEntries(ctx context.Context, storeID uuid.UUID, filter EntryFilter, cursor *pagination.Cursor, limit int) ([]LedgerEntry, error) {
	where, args := filter.where(storeID)
	if cursor != nil {
		args = append(args, ToPgTimestamptz(cursor.CreatedAt), ToPgUUID(cursor.ID))
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit+1)
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		ledgerEntryColumns, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// StreamEntries feeds every matching entry to fn, newest-first, without
// materialising the result set. Iteration stops at the first error from fn.
func (r *Repository) StreamEntries(ctx context.Context, storeID uuid.UUID, filter EntryFilter, fn func(LedgerEntry) error) error {
	where, args := filter.where(storeID)
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s ORDER BY created_at DESC, id DESC`, ledgerEntryColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stream ledger entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return fmt.Errorf("scan ledger entry: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
