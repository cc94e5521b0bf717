// Package postgres implements the repository contracts on pgx. All SQL lives
// here; domain packages never see a driver type.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/store/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GatewayConfigRepo struct {
	db *pgxpool.Pool
}

func NewGatewayConfigRepo(db *pgxpool.Pool) *GatewayConfigRepo {
	return &GatewayConfigRepo{db: db}
}

const gatewayConfigCols = `id, landlord_id, kind, shortcode, environment, active, verified, credentials`

func scanGatewayConfig(row pgx.Row) (*gatewayconfig.Config, error) {
	var c gatewayconfig.Config
	err := row.Scan(&c.ID, &c.LandlordID, &c.Kind, &c.Shortcode, &c.Environment,
		&c.Active, &c.Verified, &c.EncryptedFields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("scan gateway config: %w", err)
	}
	if c.EncryptedFields == nil {
		c.EncryptedFields = make(map[string]string)
	}
	return &c, nil
}

func (r *GatewayConfigRepo) FindActive(ctx context.Context, landlordID int64, kind gatewayconfig.Kind) (*gatewayconfig.Config, error) {
	row := r.db.QueryRow(ctx, `SELECT `+gatewayConfigCols+` FROM gateway_configs
		WHERE landlord_id=$1 AND kind=$2 AND active=true
		ORDER BY id DESC LIMIT 1`, landlordID, kind)
	return scanGatewayConfig(row)
}

func (r *GatewayConfigRepo) FindByShortcode(ctx context.Context, kind gatewayconfig.Kind, shortcode string) (*gatewayconfig.Config, error) {
	row := r.db.QueryRow(ctx, `SELECT `+gatewayConfigCols+` FROM gateway_configs
		WHERE kind=$1 AND shortcode=$2 AND active=true
		ORDER BY id DESC LIMIT 1`, kind, shortcode)
	return scanGatewayConfig(row)
}

// Save inserts a new config or updates an existing one. Registering a config
// deactivates any previous active config of the same kind so FindActive
// stays unambiguous.
func (r *GatewayConfigRepo) Save(ctx context.Context, cfg *gatewayconfig.Config) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if cfg.ID == 0 {
		if _, err := tx.Exec(ctx, `UPDATE gateway_configs SET active=false, updated_at=now()
			WHERE landlord_id=$1 AND kind=$2 AND active=true`, cfg.LandlordID, cfg.Kind); err != nil {
			return fmt.Errorf("deactivate previous config: %w", err)
		}
		err = tx.QueryRow(ctx, `INSERT INTO gateway_configs
			(landlord_id, kind, shortcode, environment, active, verified, credentials)
			VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			cfg.LandlordID, cfg.Kind, cfg.Shortcode, cfg.Environment,
			cfg.Active, cfg.Verified, cfg.EncryptedFields).Scan(&cfg.ID)
		if err != nil {
			return fmt.Errorf("insert gateway config: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx, `UPDATE gateway_configs SET
			shortcode=$2, environment=$3, active=$4, verified=$5, credentials=$6, updated_at=now()
			WHERE id=$1`,
			cfg.ID, cfg.Shortcode, cfg.Environment, cfg.Active, cfg.Verified, cfg.EncryptedFields)
		if err != nil {
			return fmt.Errorf("update gateway config: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *GatewayConfigRepo) ListByLandlord(ctx context.Context, landlordID int64) ([]*gatewayconfig.Config, error) {
	rows, err := r.db.Query(ctx, `SELECT `+gatewayConfigCols+` FROM gateway_configs
		WHERE landlord_id=$1 ORDER BY id DESC`, landlordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*gatewayconfig.Config
	for rows.Next() {
		c, err := scanGatewayConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
