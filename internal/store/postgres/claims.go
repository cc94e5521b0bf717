package postgres

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CallbackClaimRepo struct {
	db *pgxpool.Pool
}

func NewCallbackClaimRepo(db *pgxpool.Pool) *CallbackClaimRepo { return &CallbackClaimRepo{db: db} }

// Claim inserts the processed-callback row. The unique index on gateway_ref
// is the idempotency barrier: a 23505 means another delivery won the race,
// which is the expected path for duplicates, not an error.
func (r *CallbackClaimRepo) Claim(ctx context.Context, c repositories.ProcessedCallback) (bool, error) {
	_, err := r.db.Exec(ctx, `INSERT INTO processed_callbacks
		(gateway_ref, transaction_ref, invoice_id, amount, phone, processed_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,0), $4, NULLIF($5,''), $6)`,
		c.GatewayRef, c.TransactionRef, c.InvoiceID, c.Amount, c.Phone, c.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("claim callback %s: %w", c.GatewayRef, err)
	}
	return true, nil
}
