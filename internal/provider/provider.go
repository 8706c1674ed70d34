// internal/provider/provider.go
package provider

import (
	"context"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
)

// Gateway is the STK push provider the service reconciles against.
type Gateway interface {
	// Name returns the provider name
	Name() string

	// Initiate sends an STK push. A declined request comes back as a response
	// with Success false; network and protocol failures are *domain.TransportError.
	Initiate(ctx context.Context, phone string, amount int64) (*InitiateResponse, error)

	// QueryStatus asks the provider for the latest state of a transaction.
	QueryStatus(ctx context.Context, transactionID string) (*domain.GatewayEvent, error)
}

type InitiateResponse struct {
	Success       bool
	TransactionID string
	Message       string
}
