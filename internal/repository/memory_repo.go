// internal/repository/memory_repo.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"go.uber.org/zap"
)

// memoryRepo keeps receipts in a map guarded by one mutex. With a snapshot path
// set, every write rewrites the whole map to a JSON file.
type memoryRepo struct {
	mu       sync.Mutex
	receipts map[string]*domain.Receipt
	path     string
	logger   *zap.Logger
}

func NewMemoryReceiptRepository() ReceiptRepository {
	return &memoryRepo{
		receipts: make(map[string]*domain.Receipt),
		logger:   zap.NewNop(),
	}
}

// NewFileReceiptRepository loads receipts from path (if present) and persists
// every write back to it.
func NewFileReceiptRepository(path string, logger *zap.Logger) (ReceiptRepository, error) {
	repo := &memoryRepo{
		receipts: make(map[string]*domain.Receipt),
		path:     path,
		logger:   logger,
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return repo, nil
	case err != nil:
		return nil, fmt.Errorf("read receipts file: %w", err)
	}
	if len(raw) == 0 {
		return repo, nil
	}
	if err := json.Unmarshal(raw, &repo.receipts); err != nil {
		return nil, fmt.Errorf("decode receipts file: %w", err)
	}
	logger.Info("receipts loaded", zap.String("path", path), zap.Int("count", len(repo.receipts)))
	return repo, nil
}

func (r *memoryRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.receipts[receipt.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	r.receipts[receipt.Reference] = receipt.Clone()
	if err := r.persistLocked(); err != nil {
		delete(r.receipts, receipt.Reference)
		return err
	}
	return nil
}

func (r *memoryRepo) GetByReference(ctx context.Context, reference string) (*domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.receipts[reference]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	return rec.Clone(), nil
}

func (r *memoryRepo) Exists(ctx context.Context, reference string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.receipts[reference]
	return ok, nil
}

func (r *memoryRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Receipt, error) {
	if transactionID == "" {
		return nil, domain.ErrReceiptNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.receipts {
		if rec.TransactionID == transactionID {
			return rec.Clone(), nil
		}
	}
	return nil, domain.ErrReceiptNotFound
}

func (r *memoryRepo) List(ctx context.Context) ([]*domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Receipt, 0, len(r.receipts))
	for _, rec := range r.receipts {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}

func (r *memoryRepo) Update(ctx context.Context, reference string, fn UpdateFunc) (*domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.receipts[reference]
	if !ok {
		return nil, domain.ErrReceiptNotFound
	}
	next, changed, err := applyUpdate(current.Clone(), fn)
	if err != nil {
		return nil, err
	}
	if !changed {
		return next.Clone(), nil
	}
	r.receipts[reference] = next.Clone()
	if err := r.persistLocked(); err != nil {
		r.receipts[reference] = current
		return nil, err
	}
	return next.Clone(), nil
}

// persistLocked writes the snapshot through a temp file and rename. Caller holds mu.
func (r *memoryRepo) persistLocked() error {
	if r.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(r.receipts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode receipts: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".receipts-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		r.logger.Error("failed to persist receipts", zap.String("path", r.path), zap.Error(err))
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
