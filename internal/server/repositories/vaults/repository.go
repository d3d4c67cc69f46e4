package vaults

import (
	"context"

	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, id string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]models.VaultSummary, error)
	Delete(ctx context.Context, id string) error
}
