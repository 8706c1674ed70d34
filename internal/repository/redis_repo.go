// internal/repository/redis_repo.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisIndexKey      = "receipts:v1:index"
	redisUpdateRetries = 25
	redisListBatchSize = 200
)

func receiptKey(reference string) string {
	return fmt.Sprintf("receipt:v1:%s", reference)
}

// redisRepo stores each receipt as a JSON string plus a set of all references.
// Update is an optimistic WATCH/MULTI transaction retried on conflict.
type redisRepo struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisReceiptRepository(client *redis.Client, logger *zap.Logger) ReceiptRepository {
	return &redisRepo{client: client, logger: logger}
}

// createScript writes the receipt and its index entry together. The index is
// touched first so a failing SADD leaves nothing behind.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("SADD", KEYS[2], ARGV[2])
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

func (r *redisRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	created, err := createScript.Run(ctx, r.client,
		[]string{receiptKey(receipt.Reference), redisIndexKey},
		data, receipt.Reference).Int()
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	if created == 0 {
		return domain.ErrDuplicateReference
	}
	return nil
}

func (r *redisRepo) GetByReference(ctx context.Context, reference string) (*domain.Receipt, error) {
	return r.get(ctx, r.client, reference)
}

func (r *redisRepo) Exists(ctx context.Context, reference string) (bool, error) {
	n, err := r.client.Exists(ctx, receiptKey(reference)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Receipt, error) {
	if transactionID == "" {
		return nil, domain.ErrReceiptNotFound
	}
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.TransactionID == transactionID {
			return rec, nil
		}
	}
	return nil, domain.ErrReceiptNotFound
}

func (r *redisRepo) List(ctx context.Context) ([]*domain.Receipt, error) {
	refs, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}

	out := make([]*domain.Receipt, 0, len(refs))
	for start := 0; start < len(refs); start += redisListBatchSize {
		end := start + redisListBatchSize
		if end > len(refs) {
			end = len(refs)
		}
		keys := make([]string, 0, end-start)
		for _, ref := range refs[start:end] {
			keys = append(keys, receiptKey(ref))
		}
		values, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("load receipts: %w", err)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var rec domain.Receipt
			if err := json.Unmarshal([]byte(s), &rec); err != nil {
				r.logger.Warn("skipping undecodable receipt", zap.String("key", keys[i]), zap.Error(err))
				continue
			}
			out = append(out, &rec)
		}
	}
	return out, nil
}

func (r *redisRepo) Update(ctx context.Context, reference string, fn UpdateFunc) (*domain.Receipt, error) {
	key := receiptKey(reference)
	var result *domain.Receipt

	txf := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, reference)
		if err != nil {
			return err
		}
		next, changed, err := applyUpdate(current, fn)
		if err != nil {
			return err
		}
		if !changed {
			result = next
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < redisUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update receipt %s: too many concurrent writers", reference)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *redisRepo) get(ctx context.Context, c stringGetter, reference string) (*domain.Receipt, error) {
	data, err := c.Get(ctx, receiptKey(reference)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	var rec domain.Receipt
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &rec, nil
}
