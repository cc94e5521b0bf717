package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentledger/internal/domain/transaction"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionCols = `id, landlord_id, correlation_id, COALESCE(gateway_ref,''), gateway,
	COALESCE(phone,''), amount, COALESCE(invoice_id,0), status, metadata, created_at`

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(&t.ID, &t.LandlordID, &t.CorrelationID, &t.GatewayRef, &t.Gateway,
		&t.Phone, &t.Amount, &t.InvoiceID, &t.Status, &t.Metadata, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if t.Metadata == nil {
		t.Metadata = make(map[string]string)
	}
	return &t, nil
}

func (r *TransactionRepo) insert(ctx context.Context, t *transaction.Transaction) error {
	return r.db.QueryRow(ctx, `INSERT INTO transactions
		(landlord_id, correlation_id, gateway_ref, gateway, phone, amount, invoice_id, status, metadata, created_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,NULLIF($7,0),$8,$9,$10) RETURNING id`,
		t.LandlordID, t.CorrelationID, t.GatewayRef, t.Gateway, t.Phone,
		t.Amount, t.InvoiceID, t.Status, t.Metadata, t.CreatedAt).Scan(&t.ID)
}

func (r *TransactionRepo) CreatePending(ctx context.Context, t *transaction.Transaction) error {
	if err := r.insert(ctx, t); err != nil {
		return fmt.Errorf("create pending transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) CreateUnmatched(ctx context.Context, t *transaction.Transaction) error {
	if err := r.insert(ctx, t); err != nil {
		return fmt.Errorf("create unmatched transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) FindPendingByCorrelationID(ctx context.Context, correlationID string) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE status='pending' AND correlation_id=$1
		ORDER BY id DESC LIMIT 1`, correlationID)
	return scanTransaction(row)
}

func (r *TransactionRepo) FindPendingByReference(ctx context.Context, ref string) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE status='pending' AND metadata->>'reference' = $1
		ORDER BY id DESC LIMIT 1`, ref)
	return scanTransaction(row)
}

func (r *TransactionRepo) FindPendingByInvoice(ctx context.Context, invoiceID int64) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE status='pending' AND invoice_id=$1
		ORDER BY id DESC LIMIT 1`, invoiceID)
	return scanTransaction(row)
}

func (r *TransactionRepo) FindLatestPendingByPhoneAmount(ctx context.Context, phone string, amount int) (*transaction.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE status='pending' AND phone=$1 AND amount=$2
		ORDER BY created_at DESC, id DESC LIMIT 1`, phone, amount)
	return scanTransaction(row)
}

func (r *TransactionRepo) List(ctx context.Context, landlordID int64, limit, offset int) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE landlord_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, landlordID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionCols+` FROM transactions
		WHERE status='pending' AND created_at < $1
		AND COALESCE(metadata->>'sweep_flagged','') <> 'true'
		ORDER BY created_at ASC LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) MarkSweepFlagged(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE transactions
		SET metadata = metadata || '{"sweep_flagged":"true"}'::jsonb, updated_at=now()
		WHERE id=$1`, id)
	return err
}
