package postgres

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/auth"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepo struct {
	db *pgxpool.Pool
}

func NewTokenRepo(db *pgxpool.Pool) *TokenRepo { return &TokenRepo{db: db} }

// FindActorByTokenHash resolves a caller from the sha256 hex of their API
// token. Only the hash ever touches the database.
func (r *TokenRepo) FindActorByTokenHash(ctx context.Context, hash string) (auth.Actor, error) {
	var a auth.Actor
	err := r.db.QueryRow(ctx, `SELECT user_id, role, COALESCE(landlord_id,0)
		FROM api_tokens WHERE token_hash=$1 AND active=true`, hash).
		Scan(&a.UserID, &a.Role, &a.LandlordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Actor{}, repositories.ErrNotFound
		}
		return auth.Actor{}, fmt.Errorf("token lookup: %w", err)
	}
	return a, nil
}
