// Package activationkeys provides persistence for single-use vault
// activation keys.
package activationkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresRepository implements activation key storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new active, unclaimed key. A duplicate key yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, k *models.ActivationKey) error {
	query := `
		INSERT INTO activation_keys (key, note, active)
		VALUES ($1, $2, TRUE)
		RETURNING active, created_at
	`
	err := r.db.QueryRowContext(ctx, query, k.Key, k.Note).Scan(&k.Active, &k.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, key string) (*models.ActivationKey, error) {
	query := `
		SELECT key, note, active, claimed_by, claimed_at, created_at
		FROM activation_keys
		WHERE key = $1
	`
	k, err := scanKey(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.ActivationKey, error) {
	query := `
		SELECT key, note, active, claimed_by, claimed_at, created_at
		FROM activation_keys
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select activation keys: %w", err)
	}
	defer rows.Close()

	result := []*models.ActivationKey{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Claim binds an active, unclaimed key to vaultID. The condition and the
// update are one statement, so of several concurrent claimers exactly one
// succeeds; the rest get common.ErrorInvalidActivationKey.
func (r *PostgresRepository) Claim(ctx context.Context, key, vaultID string, at time.Time) error {
	query := `
		UPDATE activation_keys SET claimed_by = $2, claimed_at = $3
		WHERE key = $1 AND active AND claimed_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, key, vaultID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorInvalidActivationKey
	}
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, key string) error {
	query := `UPDATE activation_keys SET active = FALSE WHERE key = $1`

	res, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner) (*models.ActivationKey, error) {
	k := &models.ActivationKey{}
	var claimedBy sql.NullString
	var claimedAt sql.NullTime
	if err := s.Scan(&k.Key, &k.Note, &k.Active, &claimedBy, &claimedAt, &k.CreatedAt); err != nil {
		return nil, err
	}
	if claimedBy.Valid {
		k.ClaimedBy = &claimedBy.String
	}
	if claimedAt.Valid {
		k.ClaimedAt = &claimedAt.Time
	}
	return k, nil
}
