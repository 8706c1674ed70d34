// internal/domain/payment.go
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PaymentRequest is the caller's ask to collect a loan fee over STK push.
type PaymentRequest struct {
	Phone      string          `json:"phone"`
	Amount     decimal.Decimal `json:"amount"`
	LoanAmount LoanAmount      `json:"loan_amount,omitempty"`
}

// Validate normalizes the phone and rounds the fee. It returns the canonical
// phone and the integer fee, or an error wrapping ErrValidation.
func (r PaymentRequest) Validate() (string, int64, error) {
	phone, ok := NormalizePhone(r.Phone)
	if !ok {
		return "", 0, ErrInvalidPhone
	}
	if r.Amount.LessThan(decimal.NewFromInt(1)) {
		return "", 0, ErrInvalidAmount
	}
	return phone, r.Amount.Round(0).IntPart(), nil
}

// LoanAmount accepts either a JSON number or a JSON string and keeps the
// caller's text.
type LoanAmount string

func (l *LoanAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LoanAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("loan_amount: %w", err)
	}
	*l = LoanAmount(n.String())
	return nil
}

// OrDefault returns the loan amount, or def when the caller left it out.
func (l LoanAmount) OrDefault(def string) string {
	if l == "" {
		return def
	}
	return string(l)
}

// InitiationResult is what the payment flow reports back to its caller.
type InitiationResult struct {
	Success   bool
	Message   string
	Error     string
	Reference string
	Receipt   *Receipt
	Outcome   ReceiptStatus
}

// WebhookAck is the fixed acknowledgement mobile-money senders expect.
type WebhookAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func SuccessAck() WebhookAck {
	return WebhookAck{ResultCode: 0, ResultDesc: "Success"}
}
