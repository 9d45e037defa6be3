package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/seller-payouts/internal/repository"
	"github.com/google/uuid"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record. An empty actor means the system.
func (s *AuditService) Write(ctx context.Context, qtx *repository.Queries, entityType string, entityID uuid.UUID, actor, action, prevState, nextState string, metadata []byte) error {
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entityType,
		EntityID:   repository.ToPgUUID(entityID),
		Actor:      textParam(actor),
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// History returns the audit trail of one entity, oldest first.
func (s *AuditService) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]repository.AuditLog, error) {
	rows, err := s.store.Queries().ListAuditLogByEntity(ctx, entityType, repository.ToPgUUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return rows, nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
