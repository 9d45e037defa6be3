package service

import (
	"context"

	"github.com/ayo6706/seller-payouts/internal/pagination"
	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
)

// QueryStore defines the minimal data access contract required by services.
type QueryStore interface {
	Queries() *repository.Queries
	RunInTx(ctx context.Context, fn func(q *repository.Queries) error) error
}

// EntryReader serves the filtered activity queries that sqlc cannot express.
type EntryReader interface {
	ListEntries(ctx context.Context, storeID uuid.UUID, filter repository.EntryFilter, cursor *pagination.Cursor, limit int) ([]repository.LedgerEntry, error)
	StreamEntries(ctx context.Context, storeID uuid.UUID, filter repository.EntryFilter, fn func(repository.LedgerEntry) error) error
}
