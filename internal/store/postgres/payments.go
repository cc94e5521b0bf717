package postgres

import (
	"context"

	"rentledger/internal/domain/payment"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepo struct {
	db *pgxpool.Pool
}

func NewPaymentRepo(db *pgxpool.Pool) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) List(ctx context.Context, landlordID int64, limit, offset int) ([]*payment.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, tenant_user_id, lease_id, landlord_id,
			amount, method, gateway_receipt, COALESCE(notes,''), created_at
		FROM payments WHERE landlord_id=$1
		ORDER BY id DESC LIMIT $2 OFFSET $3`, landlordID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*payment.Payment
	for rows.Next() {
		var p payment.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.TenantID, &p.LeaseID, &p.LandlordID,
			&p.Amount, &p.Method, &p.GatewayReceipt, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// NotesContainRef covers payments recorded before the processed_callbacks
// table existed; their only trace of a gateway reference is the notes text.
func (r *PaymentRepo) NotesContainRef(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM payments WHERE gateway_receipt=$1 OR notes LIKE '%' || $1 || '%')`, ref).
		Scan(&exists)
	return exists, err
}
