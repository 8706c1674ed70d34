// internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"
	"github.com/tgggt66uhgg/stk-push/internal/repository"

	"go.uber.org/zap"
)

const maxLoggedPayload = 1000

type CallbackUsecase struct {
	repo      repository.ReceiptRepository
	reconcile *ReconcileUsecase
	logger    *zap.Logger
}

func NewCallbackUsecase(repo repository.ReceiptRepository, reconcile *ReconcileUsecase, logger *zap.Logger) *CallbackUsecase {
	return &CallbackUsecase{
		repo:      repo,
		reconcile: reconcile,
		logger:    logger,
	}
}

// HandleWebhook applies a gateway callback and always acknowledges it.
// Callbacks never create receipts; unmapped ones are logged and dropped.
func (uc *CallbackUsecase) HandleWebhook(ctx context.Context, payload []byte) domain.WebhookAck {
	uc.logger.Info("callback received", zap.String("payload", truncatePayload(payload)))

	ev, err := domain.ParseEvent(payload)
	if err != nil {
		metrics.Webhooks.WithLabelValues(metrics.ResultInvalid).Inc()
		uc.logger.Warn("callback payload is not valid JSON", zap.Error(err))
		return domain.SuccessAck()
	}

	reference, err := uc.resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrUnresolvedWebhook) {
			metrics.Webhooks.WithLabelValues(metrics.ResultUnresolved).Inc()
			uc.logger.Warn("callback without a known reference or transaction mapping",
				zap.String("reference", ev.Reference),
				zap.Strings("transaction_ids", ev.TransactionIDs),
				zap.String("payload", truncatePayload(payload)))
		} else {
			metrics.Webhooks.WithLabelValues(metrics.ResultError).Inc()
			uc.logger.Error("callback resolution failed", zap.Error(err))
		}
		return domain.SuccessAck()
	}

	res, err := uc.reconcile.Apply(ctx, reference, ev, events.SourceWebhook)
	switch {
	case err != nil:
		metrics.Webhooks.WithLabelValues(metrics.ResultError).Inc()
		uc.logger.Error("failed to apply callback",
			zap.String("reference", reference),
			zap.Error(err))
	case res.Ignored:
		metrics.Webhooks.WithLabelValues(metrics.ResultIgnored).Inc()
		uc.logger.Info("callback carries no outcome, ignored",
			zap.String("reference", reference),
			zap.String("status", ev.Status))
	case res.Changed:
		metrics.Webhooks.WithLabelValues(metrics.ResultApplied).Inc()
	default:
		metrics.Webhooks.WithLabelValues(metrics.ResultNoop).Inc()
		uc.logger.Info("callback for settled receipt, nothing to change",
			zap.String("reference", reference),
			zap.String("status", string(res.To)))
	}
	return domain.SuccessAck()
}

// resolve looks up the receipt first by an echoed reference, then by any
// gateway transaction id the payload carries.
func (uc *CallbackUsecase) resolve(ctx context.Context, ev *domain.GatewayEvent) (string, error) {
	if ev.Reference != "" {
		ok, err := uc.repo.Exists(ctx, ev.Reference)
		if err != nil {
			return "", err
		}
		if ok {
			return ev.Reference, nil
		}
	}

	for _, txID := range ev.TransactionIDs {
		rec, err := uc.repo.FindByTransactionID(ctx, txID)
		if errors.Is(err, domain.ErrReceiptNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		return rec.Reference, nil
	}
	return "", domain.ErrUnresolvedWebhook
}

func truncatePayload(b []byte) string {
	if len(b) > maxLoggedPayload {
		return string(b[:maxLoggedPayload])
	}
	return string(b)
}
