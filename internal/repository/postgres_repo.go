// internal/repository/postgres_repo.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/tgggt66uhgg/stk-push/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const receiptColumns = `
	reference, transaction_id, transaction_code, amount, loan_amount,
	phone, customer_name, status, status_note, updated_at`

const createReceiptsTable = `
	CREATE TABLE IF NOT EXISTS receipts (
		reference        TEXT PRIMARY KEY,
		transaction_id   TEXT NOT NULL DEFAULT '',
		transaction_code TEXT NOT NULL DEFAULT '',
		amount           BIGINT NOT NULL DEFAULT 0,
		loan_amount      TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL DEFAULT '',
		customer_name    TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL,
		status_note      TEXT NOT NULL DEFAULT '',
		updated_at       TIMESTAMPTZ NOT NULL
	)`

type postgresRepo struct {
	db *pgxpool.Pool
}

func NewPostgresReceiptRepository(db *pgxpool.Pool) ReceiptRepository {
	return &postgresRepo{db: db}
}

// EnsureSchema creates the receipts table when missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, createReceiptsTable); err != nil {
		return fmt.Errorf("create receipts table: %w", err)
	}
	return nil
}

func (r *postgresRepo) Create(ctx context.Context, receipt *domain.Receipt) error {
	query := `INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		receipt.Reference,
		receipt.TransactionID,
		receipt.SettlementCode,
		receipt.FeeAmount,
		receipt.LoanAmount,
		receipt.Phone,
		receipt.CustomerName,
		string(receipt.Status),
		receipt.StatusNote,
		receipt.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetByReference(ctx context.Context, reference string) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE reference = $1`
	return scanReceipt(r.db.QueryRow(ctx, query, reference))
}

func (r *postgresRepo) Exists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM receipts WHERE reference = $1)`, reference).Scan(&exists)
	return exists, err
}

func (r *postgresRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Receipt, error) {
	if transactionID == "" {
		return nil, domain.ErrReceiptNotFound
	}
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE transaction_id = $1 LIMIT 1`
	return scanReceipt(r.db.QueryRow(ctx, query, transactionID))
}

func (r *postgresRepo) List(ctx context.Context) ([]*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts ORDER BY reference`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (r *postgresRepo) Update(ctx context.Context, reference string, fn UpdateFunc) (*domain.Receipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE reference = $1 FOR UPDATE`
	current, err := scanReceipt(tx.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, err
	}

	next, changed, err := applyUpdate(current, fn)
	if err != nil {
		return nil, err
	}
	if !changed {
		return next, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE receipts SET
			transaction_id = $2, transaction_code = $3, amount = $4, loan_amount = $5,
			phone = $6, customer_name = $7, status = $8, status_note = $9, updated_at = $10
		WHERE reference = $1`,
		next.Reference,
		next.TransactionID,
		next.SettlementCode,
		next.FeeAmount,
		next.LoanAmount,
		next.Phone,
		next.CustomerName,
		string(next.Status),
		next.StatusNote,
		next.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("update receipt: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var (
		rec    domain.Receipt
		status string
	)
	err := row.Scan(
		&rec.Reference,
		&rec.TransactionID,
		&rec.SettlementCode,
		&rec.FeeAmount,
		&rec.LoanAmount,
		&rec.Phone,
		&rec.CustomerName,
		&status,
		&rec.StatusNote,
		&rec.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	rec.Status = domain.ReceiptStatus(status)
	rec.Timestamp = rec.Timestamp.UTC()
	return &rec, nil
}
