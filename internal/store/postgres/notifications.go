package postgres

import (
	"context"

	"rentledger/internal/notify"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct {
	db *pgxpool.Pool
}

func NewNotificationRepo(db *pgxpool.Pool) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Insert(ctx context.Context, n notify.Notification) error {
	_, err := r.db.Exec(ctx, `INSERT INTO notifications
		(landlord_id, kind, message, reference, amount, created_at)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6)`,
		n.LandlordID, n.Kind, n.Message, n.Reference, n.Amount, n.CreatedAt)
	return err
}
