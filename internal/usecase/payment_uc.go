// internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/events"
	"github.com/tgggt66uhgg/stk-push/internal/metrics"
	"github.com/tgggt66uhgg/stk-push/internal/provider"
	"github.com/tgggt66uhgg/stk-push/internal/repository"
	"github.com/tgggt66uhgg/stk-push/pkg/id"

	"go.uber.org/zap"
)

const (
	MessageSTKSent          = "STK push sent, check your phone"
	MessageInitiationFailed = "Failed to initiate payment"

	persistTimeout = 5 * time.Second
)

// Watcher starts reconciliation polling for an initiated payment.
type Watcher interface {
	Watch(reference, transactionID string) bool
}

type PaymentUsecase struct {
	repo              repository.ReceiptRepository
	gateway           provider.Gateway
	references        *id.ReferenceGenerator
	watcher           Watcher
	publisher         events.Publisher
	defaultLoanAmount string
	logger            *zap.Logger
	now               func() time.Time
}

func NewPaymentUsecase(
	repo repository.ReceiptRepository,
	gateway provider.Gateway,
	references *id.ReferenceGenerator,
	watcher Watcher,
	publisher events.Publisher,
	defaultLoanAmount string,
	logger *zap.Logger,
) *PaymentUsecase {
	if defaultLoanAmount == "" {
		defaultLoanAmount = domain.DefaultLoanAmount
	}
	return &PaymentUsecase{
		repo:              repo,
		gateway:           gateway,
		references:        references,
		watcher:           watcher,
		publisher:         publisher,
		defaultLoanAmount: defaultLoanAmount,
		logger:            logger,
		now:               time.Now,
	}
}

// InitiatePayment validates the request, sends the STK push and records the
// attempt. Every attempt that passes validation leaves a receipt behind,
// whatever the gateway said. The returned error is non-nil only for
// validation failures and store failures.
func (uc *PaymentUsecase) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.InitiationResult, error) {
	phone, fee, err := req.Validate()
	if err != nil {
		return nil, err
	}

	reference, err := uc.references.GenerateUnique(ctx, uc.repo.Exists)
	if err != nil {
		return nil, fmt.Errorf("allocate reference: %w", err)
	}

	receipt := &domain.Receipt{
		Reference:    reference,
		FeeAmount:    fee,
		LoanAmount:   req.LoanAmount.OrDefault(uc.defaultLoanAmount),
		Phone:        phone,
		CustomerName: domain.CustomerNamePlaceholder,
	}
	result := &domain.InitiationResult{Reference: reference}

	start := time.Now()
	resp, gwErr := uc.gateway.Initiate(ctx, phone, fee)
	metrics.GatewayLatency.WithLabelValues("initiate").Observe(time.Since(start).Seconds())

	switch {
	case gwErr != nil:
		uc.logger.Error("payment initiation error",
			zap.String("reference", reference),
			zap.String("phone", phone),
			zap.Error(gwErr))
		receipt.Status = domain.StatusError
		receipt.StatusNote = domain.NoteSystemError
		result.Error = gwErr.Error()

	case !resp.Success:
		rejection := &domain.GatewayRejection{Message: resp.Message}
		uc.logger.Warn("stk push rejected",
			zap.String("reference", reference),
			zap.String("phone", phone),
			zap.Error(rejection))
		receipt.Status = domain.StatusSTKFailed
		receipt.TransactionID = resp.TransactionID
		receipt.StatusNote = firstNonEmpty(resp.Message, domain.NoteSTKFailedDefault)
		result.Error = firstNonEmpty(resp.Message, MessageInitiationFailed)

	default:
		receipt.Status = domain.StatusPending
		receipt.TransactionID = resp.TransactionID
		receipt.StatusNote = domain.AwaitingConfirmationNote(phone)
		result.Success = true
		result.Message = MessageSTKSent
	}

	// The receipt is written even when the caller went away during the
	// gateway call, so the attempt stays on record.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	receipt.Timestamp = uc.now().UTC()
	if err := uc.repo.Create(persistCtx, receipt); err != nil {
		return nil, fmt.Errorf("store receipt %s: %w", reference, err)
	}

	metrics.Initiations.WithLabelValues(string(receipt.Status)).Inc()
	uc.logger.Info("payment initiated",
		zap.String("reference", reference),
		zap.String("status", string(receipt.Status)),
		zap.String("transaction_id", receipt.TransactionID),
		zap.Int64("amount", fee))

	publish(persistCtx, uc.publisher, events.NewCreated(events.SourceInitiation, receipt), uc.logger)

	if receipt.Status == domain.StatusPending && receipt.TransactionID != "" && uc.watcher != nil {
		uc.watcher.Watch(reference, receipt.TransactionID)
	}

	result.Receipt = receipt
	result.Outcome = receipt.Status
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
