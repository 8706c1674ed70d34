// internal/usecase/release_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"
	"github.com/tgggt66uhgg/stk-push/internal/repository"

	"go.uber.org/zap"
)

type ReleaseUsecase struct {
	repo      repository.ReceiptRepository
	delay     time.Duration
	publisher events.Publisher
	logger    *zap.Logger
}

func NewReleaseUsecase(repo repository.ReceiptRepository, delay time.Duration, publisher events.Publisher, logger *zap.Logger) *ReleaseUsecase {
	return &ReleaseUsecase{
		repo:      repo,
		delay:     delay,
		publisher: publisher,
		logger:    logger,
	}
}

// ReleaseDue promotes every processing receipt whose last transition is at
// least delay old. It returns how many were released. A failure on one
// receipt does not stop the sweep.
func (uc *ReleaseUsecase) ReleaseDue(ctx context.Context, now time.Time) (int, error) {
	receipts, err := uc.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list receipts: %w", err)
	}

	released := 0
	var errs []error
	for _, r := range receipts {
		if !r.ReleaseDue(now, uc.delay) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return released, err
		}

		var promoted bool
		stored, err := uc.repo.Update(ctx, r.Reference, func(current *domain.Receipt) (*domain.Receipt, error) {
			promoted = false
			if !current.ReleaseDue(now, uc.delay) {
				return nil, domain.ErrNoChange
			}
			current.Status = domain.StatusLoanReleased
			current.StatusNote = domain.NoteLoanReleased
			if now.After(current.Timestamp) {
				current.Timestamp = now.UTC()
			}
			promoted = true
			return current, nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrReceiptNotFound) {
				continue
			}
			uc.logger.Error("failed to release loan", zap.String("reference", r.Reference), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !promoted {
			continue
		}

		released++
		metrics.Releases.Inc()
		metrics.Transitions.WithLabelValues(string(domain.StatusProcessing), string(domain.StatusLoanReleased), string(events.SourceRelease)).Inc()
		uc.logger.Info("released loan", zap.String("reference", r.Reference))
		publish(ctx, uc.publisher, events.NewChanged(events.SourceRelease, domain.StatusProcessing, stored), uc.logger)
	}

	return released, errors.Join(errs...)
}
