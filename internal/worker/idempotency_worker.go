package worker

import (
	"context"
	"time"

	"github.com/ayo6706/seller-payouts/internal/idempotency"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyPurgeWorker deletes finished idempotency keys past their TTL.
type IdempotencyPurgeWorker struct {
	*loop
	store *idempotency.Store
}

func NewIdempotencyPurgeWorker(store *idempotency.Store, client redis.Cmdable, interval time.Duration) *IdempotencyPurgeWorker {
	w := &IdempotencyPurgeWorker{store: store}
	w.loop = newLoop("idempotency_purge", interval, w.purge)
	w.lock = NewRunLock(client, "idempotency-purge:run", 10*time.Minute)
	return w
}

func (w *IdempotencyPurgeWorker) purge(ctx context.Context) error {
	n, err := w.store.Purge(ctx, time.Now())
	if n > 0 {
		zap.L().Info("expired idempotency keys purged", zap.Int64("count", n))
	}
	return err
}
