package worker

import (
	"context"
	"time"

	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const autoPayoutBatch = 500

// AutoPayoutWorker requests payouts for stores on an automatic schedule.
type AutoPayoutWorker struct {
	*loop
	svc *service.PayoutService
	now func() time.Time
}

func NewAutoPayoutWorker(svc *service.PayoutService, client redis.Cmdable, interval time.Duration) *AutoPayoutWorker {
	w := &AutoPayoutWorker{svc: svc, now: time.Now}
	w.loop = newLoop("auto_payout", interval, w.request)
	w.lock = NewRunLock(client, "auto-payout:run", 10*time.Minute)
	return w
}

func (w *AutoPayoutWorker) request(ctx context.Context) error {
	n, err := w.svc.RunAutomaticPayouts(ctx, w.now(), autoPayoutBatch)
	if n > 0 {
		zap.L().Info("automatic payouts requested", zap.Int("count", n))
	}
	return err
}
