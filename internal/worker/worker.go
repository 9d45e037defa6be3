package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/seller-payouts/internal/observability"
	"go.uber.org/zap"
)

// loop runs a job on a fixed interval until stopped. Each run first takes the
// job's cluster lock; a run that cannot take it is skipped.
type loop struct {
	name      string
	interval  time.Duration
	immediate bool
	lock      *RunLock
	job       func(ctx context.Context) error

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newLoop(name string, interval time.Duration, job func(ctx context.Context) error) *loop {
	return &loop{
		name:     name,
		interval: interval,
		job:      job,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is canceled.
func (l *loop) Start(ctx context.Context) {
	zap.L().Info("worker starting", zap.String("worker", l.name), zap.Duration("interval", l.interval))
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	if l.immediate {
		_ = l.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("worker context canceled", zap.String("worker", l.name))
			return
		case <-l.stopCh:
			zap.L().Info("worker stop signal received", zap.String("worker", l.name))
			return
		case <-ticker.C:
			_ = l.RunOnce(ctx)
		}
	}
}

// Stop signals the loop to return. It may be called more than once.
func (l *loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// Run starts the loop in a goroutine and returns its stop function.
func (l *loop) Run(ctx context.Context) func() {
	go l.Start(ctx)
	return l.Stop
}

// RunOnce performs a single locked run. It is also what the admin
// endpoints and tests call directly.
func (l *loop) RunOnce(ctx context.Context) error {
	release, ok, err := l.lock.Acquire(ctx)
	if err != nil {
		observability.IncrementWorkerRun(l.name, "failed")
		zap.L().Error("worker lock failed", zap.String("worker", l.name), zap.Error(err))
		return err
	}
	if !ok {
		observability.IncrementWorkerLockSkipped(l.name)
		zap.L().Debug("worker run skipped; lock held elsewhere", zap.String("worker", l.name))
		return nil
	}
	defer release()

	if err := l.job(ctx); err != nil {
		observability.IncrementWorkerRun(l.name, "failed")
		zap.L().Error("worker run failed", zap.String("worker", l.name), zap.Error(err))
		return err
	}
	observability.IncrementWorkerRun(l.name, "success")
	return nil
}

func lockReleaseFailed(key string, err error) {
	zap.L().Warn("worker lock release failed", zap.String("key", key), zap.Error(err))
}
