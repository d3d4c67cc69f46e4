// Package files provides persistence for encrypted file records.
package files

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

// foreignKeyViolation is raised when the owning vault row is gone.
const foreignKeyViolation = "23503"

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert writes a file record keyed by (vault_id, path). An existing row is
// overwritten and any tombstone on it is cleared. Writing into a vault that
// does not exist returns common.ErrorNotFound.
func (r *PostgresRepository) Upsert(ctx context.Context, f *models.File) error {
	query := `
		INSERT INTO files (vault_id, path, iv, tag, data, hash, size, modified_at, original_path, storage_key, deleted, deleted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, NULL, now())
		ON CONFLICT (vault_id, path)
		DO UPDATE SET
			iv = EXCLUDED.iv,
			tag = EXCLUDED.tag,
			data = EXCLUDED.data,
			hash = EXCLUDED.hash,
			size = EXCLUDED.size,
			modified_at = EXCLUDED.modified_at,
			original_path = EXCLUDED.original_path,
			storage_key = EXCLUDED.storage_key,
			deleted = FALSE,
			deleted_at = NULL,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		f.VaultID, f.Path, f.IV, f.Tag, f.Data, f.Hash, f.Size, f.ModifiedAt, f.OriginalPath, f.StorageKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the live record at (vaultID, path) including its ciphertext.
func (r *PostgresRepository) Get(ctx context.Context, vaultID, path string) (*models.File, error) {
	query := `
		SELECT vault_id, path, iv, tag, data, hash, size, modified_at, original_path, storage_key, updated_at
		FROM files
		WHERE vault_id = $1 AND path = $2 AND NOT deleted
	`
	f := &models.File{}
	err := r.db.QueryRowContext(ctx, query, vaultID, path).Scan(
		&f.VaultID, &f.Path, &f.IV, &f.Tag, &f.Data, &f.Hash, &f.Size, &f.ModifiedAt, &f.OriginalPath, &f.StorageKey, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// Find returns the record at (vaultID, path) whether live or deleted,
// without ciphertext.
func (r *PostgresRepository) Find(ctx context.Context, vaultID, path string) (*models.File, error) {
	query := `
		SELECT vault_id, path, hash, size, modified_at, original_path, storage_key, deleted, deleted_at
		FROM files
		WHERE vault_id = $1 AND path = $2
	`
	f := &models.File{}
	var deletedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, vaultID, path).Scan(
		&f.VaultID, &f.Path, &f.Hash, &f.Size, &f.ModifiedAt, &f.OriginalPath, &f.StorageKey, &f.Deleted, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Time
	}
	return f, nil
}

// ListLive returns metadata for every live file of the vault, ordered by path.
func (r *PostgresRepository) ListLive(ctx context.Context, vaultID string) ([]models.FileMeta, error) {
	query := `
		SELECT path, hash, size, modified_at, original_path, deleted_at
		FROM files
		WHERE vault_id = $1 AND NOT deleted
		ORDER BY path
	`
	return r.selectMeta(ctx, query, vaultID)
}

// ListDeleted returns metadata for every tombstone of the vault, newest first.
func (r *PostgresRepository) ListDeleted(ctx context.Context, vaultID string) ([]models.FileMeta, error) {
	query := `
		SELECT path, hash, size, modified_at, original_path, deleted_at
		FROM files
		WHERE vault_id = $1 AND deleted
		ORDER BY deleted_at DESC
	`
	return r.selectMeta(ctx, query, vaultID)
}

func (r *PostgresRepository) selectMeta(ctx context.Context, query string, args ...any) ([]models.FileMeta, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := []models.FileMeta{}
	for rows.Next() {
		var m models.FileMeta
		var deletedAt sql.NullTime
		if err := rows.Scan(&m.Path, &m.Hash, &m.Size, &m.ModifiedAt, &m.OriginalPath, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			m.DeletedAt = &deletedAt.Time
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SoftDelete marks the live record at (vaultID, path) as deleted.
// Returns common.ErrorNotFound when there is no live record.
func (r *PostgresRepository) SoftDelete(ctx context.Context, vaultID, path string, at time.Time) error {
	query := `UPDATE files SET deleted = TRUE, deleted_at = $3, updated_at = now()
		WHERE vault_id = $1 AND path = $2 AND NOT deleted`
	return r.execOne(ctx, query, vaultID, path, at)
}

// Restore clears the tombstone at (vaultID, path).
// Returns common.ErrorNotFound when there is no deleted record.
func (r *PostgresRepository) Restore(ctx context.Context, vaultID, path string) error {
	query := `UPDATE files SET deleted = FALSE, deleted_at = NULL, updated_at = now()
		WHERE vault_id = $1 AND path = $2 AND deleted`
	return r.execOne(ctx, query, vaultID, path)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

// PurgeDeleted hard-removes tombstones deleted before the given time and
// returns the storage key of every removed row ("" for inline rows).
func (r *PostgresRepository) PurgeDeleted(ctx context.Context, before time.Time) ([]string, error) {
	query := `DELETE FROM files WHERE deleted AND deleted_at < $1 RETURNING storage_key`
	return r.deleteReturningKeys(ctx, query, before)
}

// DeleteByVault hard-removes every record of the vault and returns their
// storage keys.
func (r *PostgresRepository) DeleteByVault(ctx context.Context, vaultID string) ([]string, error) {
	query := `DELETE FROM files WHERE vault_id = $1 RETURNING storage_key`
	return r.deleteReturningKeys(ctx, query, vaultID)
}

func (r *PostgresRepository) deleteReturningKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete files: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
