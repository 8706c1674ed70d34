package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	out []byte
	err error
}

func (s stubRenderer) Render(r *domain.Receipt) ([]byte, error) {
	return s.out, s.err
}

func TestReceiptUsecase(t *testing.T) {
	repo := repository.NewMemoryReceiptRepository()
	seedReceipt(t, repo, "ORDER-1", "TX-1", domain.StatusPending, t0)
	ctx := context.Background()

	uc := NewReceiptUsecase(repo, stubRenderer{out: []byte("%PDF-1.3")})

	got, err := uc.GetReceipt(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "TX-1", got.TransactionID)

	_, err = uc.GetReceipt(ctx, "ORDER-404")
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)

	rec, doc, err := uc.RenderReceiptDocument(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", rec.Reference)
	assert.Equal(t, []byte("%PDF-1.3"), doc)

	_, _, err = uc.RenderReceiptDocument(ctx, "ORDER-404")
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)

	boom := errors.New("font missing")
	_, _, err = NewReceiptUsecase(repo, stubRenderer{err: boom}).RenderReceiptDocument(ctx, "ORDER-1")
	assert.ErrorIs(t, err, boom)
}
