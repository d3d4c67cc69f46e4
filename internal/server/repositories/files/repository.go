package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

// Repository persists file records. Live lookups ignore tombstones; Find
// sees a row in any state.
type Repository interface {
	Upsert(ctx context.Context, file *models.File) error
	Get(ctx context.Context, vaultID, path string) (*models.File, error)
	Find(ctx context.Context, vaultID, path string) (*models.File, error)
	ListLive(ctx context.Context, vaultID string) ([]models.FileMeta, error)
	ListDeleted(ctx context.Context, vaultID string) ([]models.FileMeta, error)
	SoftDelete(ctx context.Context, vaultID, path string, at time.Time) error
	Restore(ctx context.Context, vaultID, path string) error
	PurgeDeleted(ctx context.Context, before time.Time) ([]string, error)
	DeleteByVault(ctx context.Context, vaultID string) ([]string, error)
}
