package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/seller-payouts/internal/service"
)

// PayoutWorker sends pending programmatic payouts to their rails and re-drives
// stale processing ones. Safe for concurrent instances thanks to
// FOR UPDATE SKIP LOCKED, so it takes no cluster lock.
type PayoutWorker struct {
	*loop
	payoutService *service.PayoutService
	batchSize     int32
}

// NewPayoutWorker creates a new PayoutWorker instance.
func NewPayoutWorker(payoutSvc *service.PayoutService) *PayoutWorker {
	w := &PayoutWorker{
		payoutService: payoutSvc,
		batchSize:     10,
	}
	w.loop = newLoop("payout", 10*time.Second, w.processBatch)
	return w
}

// WithPollInterval sets the poll interval for the worker.
func (w *PayoutWorker) WithPollInterval(interval time.Duration) *PayoutWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize sets the batch size for the worker.
func (w *PayoutWorker) WithBatchSize(size int32) *PayoutWorker {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

func (w *PayoutWorker) processBatch(ctx context.Context) error {
	return w.payoutService.ProcessPayouts(ctx, w.batchSize)
}

func (w *PayoutWorker) String() string {
	return fmt.Sprintf("PayoutWorker(interval=%v, batch=%d)", w.interval, w.batchSize)
}
