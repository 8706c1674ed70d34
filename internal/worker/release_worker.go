// internal/worker/release_worker.go
package worker

import (
	"context"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/usecase"

	"go.uber.org/zap"
)

type ReleaseWorker struct {
	releaseUsecase *usecase.ReleaseUsecase
	interval       time.Duration
	logger         *zap.Logger
	stopChan       chan struct{}
	now            func() time.Time
}

func NewReleaseWorker(releaseUsecase *usecase.ReleaseUsecase, interval time.Duration, logger *zap.Logger) *ReleaseWorker {
	return &ReleaseWorker{
		releaseUsecase: releaseUsecase,
		interval:       interval,
		logger:         logger,
		stopChan:       make(chan struct{}),
		now:            time.Now,
	}
}

// Start sweeps once immediately, then on every tick, until ctx ends or Stop is called.
func (w *ReleaseWorker) Start(ctx context.Context) {
	w.logger.Info("starting release worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-w.stopChan:
			w.logger.Info("stopping release worker")
			return

		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping release worker")
			return
		}
	}
}

func (w *ReleaseWorker) sweep(ctx context.Context) {
	released, err := w.releaseUsecase.ReleaseDue(ctx, w.now())
	if err != nil {
		w.logger.Error("release sweep finished with errors", zap.Int("released", released), zap.Error(err))
		return
	}
	if released > 0 {
		w.logger.Info("release sweep finished", zap.Int("released", released))
	}
}

func (w *ReleaseWorker) Stop() {
	close(w.stopChan)
}
