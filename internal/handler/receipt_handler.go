// internal/handler/receipt_handler.go
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/usecase"
	"github.com/tgggt66uhgg/stk-push/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const messageReceiptNotFound = "Receipt not found"

type ReceiptHandler struct {
	receipts *usecase.ReceiptUsecase
	hub      *Hub
	logger   *zap.Logger
}

func NewReceiptHandler(receipts *usecase.ReceiptUsecase, hub *Hub, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receipts: receipts,
		hub:      hub,
		logger:   logger,
	}
}

func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	receipt, err := h.receipts.GetReceipt(r.Context(), reference)
	if err != nil {
		h.lookupFailed(w, r, reference, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.APIResponse{Success: true, Receipt: receipt})
}

func (h *ReceiptHandler) PDF(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	receipt, doc, err := h.receipts.RenderReceiptDocument(r.Context(), reference)
	if err != nil {
		h.lookupFailed(w, r, reference, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", receipt.Reference))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		h.logger.Warn("failed to write receipt document", zap.String("reference", reference), zap.Error(err))
	}
}

// Subscribe streams status changes of one receipt over a websocket. The
// current receipt is sent first as a snapshot.
func (h *ReceiptHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	receipt, err := h.receipts.GetReceipt(r.Context(), reference)
	if err != nil {
		h.lookupFailed(w, r, reference, err)
		return
	}

	h.hub.serve(w, r, reference, WSResponse{
		Type:      "snapshot",
		Data:      receipt,
		Timestamp: time.Now().Unix(),
	})
}

func (h *ReceiptHandler) lookupFailed(w http.ResponseWriter, r *http.Request, reference string, err error) {
	if errors.Is(err, domain.ErrReceiptNotFound) {
		response.Error(w, r, http.StatusNotFound, messageReceiptNotFound)
		return
	}
	h.logger.Error("receipt lookup failed", zap.String("reference", reference), zap.Error(err))
	response.Error(w, r, http.StatusInternalServerError, "Server error")
}
