// Package vaults provides persistence for vault identities.
package vaults

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

// PostgresRepository implements vault storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the vault if it does not exist yet and reports whether a
// row was written.
func (r *PostgresRepository) Create(ctx context.Context, id string) (bool, error) {
	query := `INSERT INTO vaults (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM vaults WHERE id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// List returns every vault with the count and total size of its live files.
func (r *PostgresRepository) List(ctx context.Context) ([]models.VaultSummary, error) {
	query := `
		SELECT v.id, v.created_at,
			COUNT(f.path) FILTER (WHERE NOT f.deleted),
			COALESCE(SUM(f.size) FILTER (WHERE NOT f.deleted), 0)
		FROM vaults v
		LEFT JOIN files f ON f.vault_id = v.id
		GROUP BY v.id, v.created_at
		ORDER BY v.created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select vaults: %w", err)
	}
	defer rows.Close()

	result := []models.VaultSummary{}
	for rows.Next() {
		var v models.VaultSummary
		if err := rows.Scan(&v.ID, &v.CreatedAt, &v.FileCount, &v.TotalSize); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the vault row; file rows go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM vaults WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
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
