// internal/handler/payment_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/usecase"
	"github.com/tgggt66uhgg/stk-push/pkg/response"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

type PaymentHandler struct {
	payments  *usecase.PaymentUsecase
	callbacks *usecase.CallbackUsecase
	logger    *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentUsecase, callbacks *usecase.CallbackUsecase, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		callbacks: callbacks,
		logger:    logger,
	}
}

// Pay starts an STK push for a loan fee.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.payments.InitiatePayment(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			response.Error(w, r, http.StatusBadRequest, validationMessage(err))
			return
		}
		h.logger.Error("payment initiation failed", zap.Error(err))
		response.Error(w, r, http.StatusInternalServerError, "Server error")
		return
	}

	switch res.Outcome {
	case domain.StatusPending:
		response.JSON(w, r, http.StatusOK, response.APIResponse{
			Success:   true,
			Message:   res.Message,
			Reference: res.Reference,
			Receipt:   res.Receipt,
		})
	case domain.StatusSTKFailed:
		response.JSON(w, r, http.StatusBadRequest, response.APIResponse{
			Error:   res.Error,
			Receipt: res.Receipt,
		})
	default:
		response.JSON(w, r, http.StatusInternalServerError, response.APIResponse{
			Error:   res.Error,
			Receipt: res.Receipt,
		})
	}
}

// Callback receives gateway webhooks. The sender always gets the success
// acknowledgement so it stops retrying.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("failed to read callback body", zap.Error(err))
		response.JSON(w, r, http.StatusOK, domain.SuccessAck())
		return
	}

	ack := h.callbacks.HandleWebhook(r.Context(), payload)
	response.JSON(w, r, http.StatusOK, ack)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		return "Invalid phone format"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Amount must be >= 1"
	default:
		return err.Error()
	}
}
