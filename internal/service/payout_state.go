package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/seller-payouts/internal/domain"
	"github.com/ayo6706/seller-payouts/internal/observability"
	"github.com/ayo6706/seller-payouts/internal/repository"
)

// pending -> completed and pending -> failed are the operator paths of the
// manual rail; programmatic rails always pass through processing.
var payoutTransitions = map[string]map[string]struct{}{
	domain.PayoutStatusPending: {
		domain.PayoutStatusProcessing: {},
		domain.PayoutStatusCanceled:   {},
		domain.PayoutStatusCompleted:  {},
		domain.PayoutStatusFailed:     {},
	},
	domain.PayoutStatusProcessing: {
		domain.PayoutStatusCompleted: {},
		domain.PayoutStatusFailed:    {},
	},
	domain.PayoutStatusCompleted: {},
	domain.PayoutStatusFailed:    {},
	domain.PayoutStatusCanceled:  {},
}

func canTransition(current, next string) bool {
	nextStates, ok := payoutTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

type payoutTransition struct {
	next          string
	actor         string
	action        string
	externalRef   *string
	failureReason *string
}

// transitionPayoutState moves a payout row locked by the caller to t.next and
// records the audit entry in the same transaction.
func transitionPayoutState(ctx context.Context, qtx *repository.Queries, audit *AuditService, payout repository.Payout, t payoutTransition) error {
	if !canTransition(payout.Status, t.next) {
		return &domain.InvalidStateTransitionError{
			Entity: domain.AuditEntityPayout,
			From:   payout.Status,
			To:     t.next,
		}
	}

	rows, err := qtx.UpdatePayoutStatus(ctx, repository.UpdatePayoutStatusParams{
		ID:                  payout.ID,
		Status:              t.next,
		ExternalTransferRef: t.externalRef,
		FailureReason:       t.failureReason,
	})
	if err != nil {
		return fmt.Errorf("update payout state: %w", err)
	}
	if err := requireExactlyOne(rows, "update payout state"); err != nil {
		return err
	}

	var metadata []byte
	if t.failureReason != nil {
		if metadata, err = marshalReasonMetadata(*t.failureReason); err != nil {
			return fmt.Errorf("marshal transition metadata: %w", err)
		}
	}
	if err := audit.Write(ctx, qtx, domain.AuditEntityPayout, repository.FromPgUUID(payout.ID), t.actor, t.action, payout.Status, t.next, metadata); err != nil {
		return err
	}
	observability.IncrementPayoutTransition(payout.Status, t.next)
	return nil
}
