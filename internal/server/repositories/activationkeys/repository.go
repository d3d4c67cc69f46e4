package activationkeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.ActivationKey) error
	Get(ctx context.Context, key string) (*models.ActivationKey, error)
	List(ctx context.Context) ([]*models.ActivationKey, error)
	Claim(ctx context.Context, key, vaultID string, at time.Time) error
	Deactivate(ctx context.Context, key string) error
}
