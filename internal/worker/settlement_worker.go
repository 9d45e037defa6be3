package worker

import (
	"context"
	"time"

	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/redis/go-redis/v9"
)

// SettlementWorker promotes due pending entries. One instance per cluster
// runs at a time.
type SettlementWorker struct {
	*loop
	svc *service.SettlementService
	now func() time.Time
}

func NewSettlementWorker(svc *service.SettlementService, client redis.Cmdable, interval time.Duration) *SettlementWorker {
	w := &SettlementWorker{svc: svc, now: time.Now}
	w.loop = newLoop("settlement", interval, w.settle)
	w.lock = NewRunLock(client, "settlement:run", 10*time.Minute)
	w.immediate = true
	return w
}

func (w *SettlementWorker) settle(ctx context.Context) error {
	_, err := w.svc.Run(ctx, w.now())
	return err
}
