// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Validation
var (
	ErrValidation    = errors.New("validation error")
	ErrInvalidPhone  = fmt.Errorf("%w: invalid phone format", ErrValidation)
	ErrInvalidAmount = fmt.Errorf("%w: amount must be >= 1", ErrValidation)
)

// Store
var (
	ErrReceiptNotFound    = errors.New("receipt not found")
	ErrDuplicateReference = errors.New("reference already exists")
	ErrNoChange           = errors.New("no change")
)

// Reconciliation
var (
	ErrUnresolvedWebhook = errors.New("webhook could not be mapped to a receipt")
)

// GatewayRejection is returned when the gateway answered but declined the request.
type GatewayRejection struct {
	Message string
}

func (e *GatewayRejection) Error() string {
	if e.Message == "" {
		return "gateway rejected request"
	}
	return "gateway rejected request: " + e.Message
}

// TransportError covers network failures, timeouts, non-2xx answers and malformed bodies.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
