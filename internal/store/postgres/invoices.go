package postgres

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/domain/invoice"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvoiceRepo struct {
	db *pgxpool.Pool
}

func NewInvoiceRepo(db *pgxpool.Pool) *InvoiceRepo { return &InvoiceRepo{db: db} }

func (r *InvoiceRepo) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	err := r.db.QueryRow(ctx, `SELECT id, tenant_user_id, lease_id, landlord_id, kind, amount, status
		FROM invoices WHERE id=$1`, id).
		Scan(&inv.ID, &inv.TenantID, &inv.LeaseID, &inv.LandlordID, &inv.Kind, &inv.Amount, &inv.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("find invoice %d: %w", id, err)
	}
	return &inv, nil
}

// Parties walks invoice -> lease -> unit -> property to find who may act on
// the invoice. Subscription invoices have no lease; they resolve to the
// tenant user only.
func (r *InvoiceRepo) Parties(ctx context.Context, id int64) (invoice.Parties, error) {
	var p invoice.Parties
	err := r.db.QueryRow(ctx, `SELECT i.tenant_user_id, i.landlord_id,
			COALESCE(pr.owner_user_id, 0), COALESCE(pr.manager_user_id, 0)
		FROM invoices i
		LEFT JOIN leases le ON le.id = i.lease_id
		LEFT JOIN units u ON u.id = le.unit_id
		LEFT JOIN properties pr ON pr.id = u.property_id
		WHERE i.id=$1`, id).
		Scan(&p.TenantUserID, &p.LandlordID, &p.OwnerUserID, &p.ManagerUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Parties{}, repositories.ErrNotFound
		}
		return invoice.Parties{}, fmt.Errorf("invoice %d parties: %w", id, err)
	}
	return p, nil
}
