// internal/domain/receipt.go
package domain

import (
	"time"
)

type ReceiptStatus string

const (
	StatusPending      ReceiptStatus = "pending"
	StatusSTKFailed    ReceiptStatus = "stk_failed"
	StatusError        ReceiptStatus = "error"
	StatusProcessing   ReceiptStatus = "processing"
	StatusCancelled    ReceiptStatus = "cancelled"
	StatusLoanReleased ReceiptStatus = "loan_released"
)

const (
	// CustomerNamePlaceholder is stored until a signal carries the payer's name.
	CustomerNamePlaceholder = "N/A"

	// DefaultLoanAmount is used when the caller omits loan_amount.
	DefaultLoanAmount = "50000"
)

// Status notes shown to the customer.
const (
	NoteSTKFailedDefault = "STK push failed to send. Please try again or contact support."
	NoteSystemError      = "System error occurred. Please try again later."
	NotePaymentFailed    = "Payment failed or was cancelled."
	NoteUserCancelled    = "You cancelled the payment request on your phone. Please try again."
	NoteTimedOut         = "The request timed out. You did not enter your M-Pesa PIN. Please try again."
	NoteInsufficientFund = "Payment failed due to insufficient M-Pesa balance. Please top up and try again."
	NoteLoanReleased     = "Loan has been released to your account. Thank you."
)

// M-Pesa result codes with a dedicated customer message.
const (
	ResultCodeSuccess           = 0
	ResultCodeCancelledByUser   = 1032
	ResultCodeTimedOut          = 1037
	ResultCodeInsufficientFunds = 2001
)

// Receipt is the reconciliation record of one payment attempt, keyed by Reference.
type Receipt struct {
	Reference      string        `json:"reference"`
	TransactionID  string        `json:"transaction_id"`
	SettlementCode string        `json:"transaction_code"`
	FeeAmount      int64         `json:"amount"`
	LoanAmount     string        `json:"loan_amount"`
	Phone          string        `json:"phone"`
	CustomerName   string        `json:"customer_name"`
	Status         ReceiptStatus `json:"status"`
	StatusNote     string        `json:"status_note"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Clone returns a copy that can be mutated without touching the original.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// IsTerminal reports whether no further status transition can happen.
func (s ReceiptStatus) IsTerminal() bool {
	switch s {
	case StatusSTKFailed, StatusError, StatusCancelled, StatusLoanReleased:
		return true
	}
	return false
}

// CanTransition encodes the forward-only transition graph.
func CanTransition(from, to ReceiptStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusLoanReleased
	}
	return false
}

// ConfirmationNote is written when a payment is confirmed.
func ConfirmationNote(reference string) string {
	return "✅ Your fee payment has been received and verified. Loan Reference: " + reference + ". Loan processing started."
}

// AwaitingConfirmationNote is written when the STK push was accepted by the gateway.
func AwaitingConfirmationNote(phone string) string {
	return "STK push sent to " + phone + ". Please enter your M-Pesa PIN to complete the fee payment and loan disbursement."
}

// FailureNote maps well-known result codes to customer messages, falling back to the
// gateway's own description and then to a generic message.
func FailureNote(resultCode *int, reason string) string {
	if resultCode != nil {
		switch *resultCode {
		case ResultCodeCancelledByUser:
			return NoteUserCancelled
		case ResultCodeTimedOut:
			return NoteTimedOut
		case ResultCodeInsufficientFunds:
			return NoteInsufficientFund
		}
	}
	if reason != "" {
		return reason
	}
	return NotePaymentFailed
}

// ReleaseDue reports whether a processing receipt has waited at least delay since its
// last transition.
func (r *Receipt) ReleaseDue(now time.Time, delay time.Duration) bool {
	if !CanTransition(r.Status, StatusLoanReleased) {
		return false
	}
	return !now.Before(r.Timestamp.Add(delay))
}
