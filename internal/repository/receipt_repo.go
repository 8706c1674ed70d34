// internal/repository/receipt_repo.go
package repository

import (
	"context"
	"errors"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
)

// UpdateFunc receives a private copy of the stored receipt and returns the
// version to write. Returning domain.ErrNoChange skips the write.
type UpdateFunc func(current *domain.Receipt) (*domain.Receipt, error)

// ReceiptRepository stores receipts keyed by reference. Every write is a full
// record replace; Update is the only way to modify an existing receipt and it
// runs fn inside a per-reference critical section.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *domain.Receipt) error
	GetByReference(ctx context.Context, reference string) (*domain.Receipt, error)
	Exists(ctx context.Context, reference string) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Receipt, error)
	List(ctx context.Context) ([]*domain.Receipt, error)
	Update(ctx context.Context, reference string, fn UpdateFunc) (*domain.Receipt, error)
}

// applyUpdate runs fn and pins the reference, so no caller can rename a receipt.
func applyUpdate(current *domain.Receipt, fn UpdateFunc) (*domain.Receipt, bool, error) {
	next, err := fn(current.Clone())
	if errors.Is(err, domain.ErrNoChange) {
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		return current, false, nil
	}
	next.Reference = current.Reference
	return next, true, nil
}
