// internal/usecase/receipt_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/repository"
)

// DocumentRenderer turns a receipt into a downloadable document.
type DocumentRenderer interface {
	Render(receipt *domain.Receipt) ([]byte, error)
}

type ReceiptUsecase struct {
	repo     repository.ReceiptRepository
	renderer DocumentRenderer
}

func NewReceiptUsecase(repo repository.ReceiptRepository, renderer DocumentRenderer) *ReceiptUsecase {
	return &ReceiptUsecase{repo: repo, renderer: renderer}
}

func (uc *ReceiptUsecase) GetReceipt(ctx context.Context, reference string) (*domain.Receipt, error) {
	return uc.repo.GetByReference(ctx, reference)
}

// RenderReceiptDocument returns the receipt together with its rendered document.
func (uc *ReceiptUsecase) RenderReceiptDocument(ctx context.Context, reference string) (*domain.Receipt, []byte, error) {
	receipt, err := uc.repo.GetByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	doc, err := uc.renderer.Render(receipt)
	if err != nil {
		return nil, nil, fmt.Errorf("render receipt %s: %w", reference, err)
	}
	return receipt, doc, nil
}
