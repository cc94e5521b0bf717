package postgres

import (
	"context"
	"fmt"

	"rentledger/internal/domain/payment"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo applies callback outcomes atomically. Each method is one
// database transaction; partial application is impossible.
type LedgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) ApplyPaid(ctx context.Context, p repositories.ApplyPaid) (repositories.ApplyPaidResult, error) {
	var res repositories.ApplyPaidResult

	// Validate the row before opening a transaction; a malformed apply never
	// touches the database.
	pay, err := payment.New(p.InvoiceID, p.TenantID, p.LeaseID, p.LandlordID, p.Amount, p.Method, p.Receipt)
	if err != nil {
		return res, fmt.Errorf("apply paid: %w", err)
	}
	if p.Notes != "" {
		pay.Notes = p.Notes
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	// Conditional transition: only a pending invoice moves to paid. Anything
	// else (already paid, cancelled) leaves the invoice untouched and we
	// record that fact in the result.
	tag, err := tx.Exec(ctx, `UPDATE invoices SET status='paid', updated_at=now()
		WHERE id=$1 AND status='pending'`, p.InvoiceID)
	if err != nil {
		return res, fmt.Errorf("invoice transition: %w", err)
	}
	res.InvoiceTransitioned = tag.RowsAffected() > 0

	err = tx.QueryRow(ctx, `INSERT INTO payments
		(invoice_id, tenant_user_id, lease_id, landlord_id, amount, method, gateway_receipt, notes)
		VALUES ($1,$2,NULLIF($3,0),$4,$5,$6,$7,$8) RETURNING id`,
		pay.InvoiceID, pay.TenantID, pay.LeaseID, pay.LandlordID, pay.Amount, pay.Method, pay.GatewayReceipt, pay.Notes).
		Scan(&res.PaymentID)
	if err != nil {
		return res, fmt.Errorf("insert payment: %w", err)
	}

	tag, err = tx.Exec(ctx, `UPDATE transactions
		SET status='completed', gateway_ref=$2,
		    metadata = metadata || jsonb_build_object('receipt', $2::text),
		    updated_at=now()
		WHERE id=$1 AND status='pending'`, p.TransactionID, p.Receipt)
	if err != nil {
		return res, fmt.Errorf("complete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return res, fmt.Errorf("transaction %d was not pending", p.TransactionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return repositories.ApplyPaidResult{}, err
	}
	return res, nil
}

func (r *LedgerRepo) CompleteWithoutInvoice(ctx context.Context, transactionID int64, receipt string) error {
	tag, err := r.db.Exec(ctx, `UPDATE transactions
		SET status='completed', gateway_ref=$2,
		    metadata = metadata || jsonb_build_object('receipt', $2::text),
		    updated_at=now()
		WHERE id=$1 AND status='pending'`, transactionID, receipt)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d was not pending", transactionID)
	}
	return nil
}

func (r *LedgerRepo) ApplyFailure(ctx context.Context, transactionID int64, reason string) error {
	tag, err := r.db.Exec(ctx, `UPDATE transactions
		SET status='failed',
		    metadata = metadata || jsonb_build_object('fail_reason', $2::text),
		    updated_at=now()
		WHERE id=$1 AND status='pending'`, transactionID, reason)
	if err != nil {
		return fmt.Errorf("fail transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d was not pending", transactionID)
	}
	return nil
}
