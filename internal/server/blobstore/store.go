// Package blobstore offloads vault ciphertext to S3-compatible object storage.
package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store keeps opaque blobs under string keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key for a blob of vaultID, partitioned by day.
func NewKey(vaultID string, now time.Time) string {
	return fmt.Sprintf("vaults/%s/%04d/%02d/%02d/%s", vaultID, now.Year(), int(now.Month()), now.Day(), uuid.New())
}
