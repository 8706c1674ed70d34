// internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"
	"github.com/tgggt66uhgg/stk-push/internal/repository"

	"go.uber.org/zap"
)

// ApplyResult reports what a status event did to a stored receipt.
type ApplyResult struct {
	Receipt      *domain.Receipt
	From         domain.ReceiptStatus
	To           domain.ReceiptStatus
	Transitioned bool
	Changed      bool
	// Ignored is set for non-decisive events, which are never merged.
	Ignored bool
}

// ReconcileUsecase applies gateway events to receipts. Poller ticks and
// webhooks both go through Apply, so the merge runs in one place under the
// repository's per-reference lock.
type ReconcileUsecase struct {
	repo      repository.ReceiptRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewReconcileUsecase(repo repository.ReceiptRepository, publisher events.Publisher, logger *zap.Logger) *ReconcileUsecase {
	return &ReconcileUsecase{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ReconcileUsecase) Apply(ctx context.Context, reference string, ev *domain.GatewayEvent, source events.Source) (*ApplyResult, error) {
	if !ev.IsDecisive() {
		current, err := uc.repo.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		return &ApplyResult{
			Receipt: current,
			From:    current.Status,
			To:      current.Status,
			Ignored: true,
		}, nil
	}

	var merged domain.MergeResult
	stored, err := uc.repo.Update(ctx, reference, func(current *domain.Receipt) (*domain.Receipt, error) {
		merged = domain.Merge(current, ev, uc.now())
		if !merged.Changed {
			return nil, domain.ErrNoChange
		}
		return merged.Receipt, nil
	})
	if err != nil {
		return nil, err
	}

	res := &ApplyResult{
		Receipt:      stored,
		From:         merged.From,
		To:           merged.To,
		Transitioned: merged.Transitioned,
		Changed:      merged.Changed,
	}
	if !res.Changed {
		return res, nil
	}

	if res.Transitioned {
		metrics.Transitions.WithLabelValues(string(res.From), string(res.To), string(source)).Inc()
		uc.logger.Info("receipt transitioned",
			zap.String("reference", reference),
			zap.String("from", string(res.From)),
			zap.String("to", string(res.To)),
			zap.String("source", string(source)),
			zap.String("transaction_code", stored.SettlementCode))
	} else {
		uc.logger.Info("receipt details updated",
			zap.String("reference", reference),
			zap.String("status", string(res.To)),
			zap.String("source", string(source)))
	}

	publish(ctx, uc.publisher, events.NewChanged(source, res.From, stored), uc.logger)
	return res, nil
}

func publish(ctx context.Context, p events.Publisher, ev events.ReceiptEvent, logger *zap.Logger) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventPublishErrors.Inc()
		logger.Warn("receipt event not published",
			zap.String("reference", ev.Reference),
			zap.String("type", string(ev.Type)),
			zap.Error(err))
	}
}
