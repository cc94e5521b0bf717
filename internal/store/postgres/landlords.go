package postgres

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/domain/landlord"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LandlordRepo struct {
	db *pgxpool.Pool
}

func NewLandlordRepo(db *pgxpool.Pool) *LandlordRepo { return &LandlordRepo{db: db} }

func (r *LandlordRepo) FindByID(ctx context.Context, id int64) (*landlord.Landlord, error) {
	var l landlord.Landlord
	err := r.db.QueryRow(ctx, `SELECT id, name, phone, payment_preference, messaging_automation, status
		FROM landlords WHERE id=$1`, id).
		Scan(&l.ID, &l.Name, &l.Phone, &l.PaymentPreference, &l.MessagingAutomation, &l.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("find landlord %d: %w", id, err)
	}
	return &l, nil
}
