package worker

import (
	"context"
	"time"

	"github.com/ayo6706/seller-payouts/internal/service"
	"github.com/redis/go-redis/v9"
)

// ReconciliationWorker runs periodic balance integrity checks.
type ReconciliationWorker struct {
	*loop
	svc *service.ReconciliationService
}

// NewReconciliationWorker constructs a worker with a default daily interval.
func NewReconciliationWorker(svc *service.ReconciliationService, client redis.Cmdable) *ReconciliationWorker {
	w := &ReconciliationWorker{svc: svc}
	w.loop = newLoop("reconciliation", 24*time.Hour, w.check)
	w.lock = NewRunLock(client, "reconciliation:run", time.Hour)
	w.immediate = true
	return w
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Drift is reported by the service itself; only query failures count as a
// failed run.
func (w *ReconciliationWorker) check(ctx context.Context) error {
	_, err := w.svc.Run(ctx)
	return err
}
