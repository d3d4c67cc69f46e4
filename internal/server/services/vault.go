// Package services contains server-side business logic. VaultService owns
// vault registration and the encrypted file store; ActivationService owns
// the single-use activation keys that gate registration of new vaults.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/repomanager"
)

// RegistrationGate runs inside the vault-creation transaction before the
// vault row is inserted. Returning an error aborts the registration.
type RegistrationGate func(ctx context.Context, tx dbx.DBTX, vaultID string) error

// VaultService persists vaults and their files. Mutations of one vault are
// serialized; different vaults proceed in parallel.
type VaultService struct {
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	logger      logging.Logger
	locks       *keyedMutex
	now         func() time.Time
}

// NewVaultService constructs a VaultService. blobs may be nil, in which
// case ciphertext is stored inline in the files table.
func NewVaultService(m repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger) *VaultService {
	return &VaultService{
		repomanager: m,
		blobs:       blobs,
		logger:      logger.With("module", "vaults"),
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// Register creates vaultID if it does not exist yet. For a new vault the
// gate (if any) runs in the same transaction as the insert. created is false
// when the vault already existed, in which case the gate is not consulted.
func (s *VaultService) Register(ctx context.Context, vaultID string, gate RegistrationGate) (created bool, err error) {
	unlock := s.locks.Lock(vaultID)
	defer unlock()

	exists, err := s.repomanager.Vaults(s.repomanager.Conn()).Exists(ctx, vaultID)
	if err != nil {
		return false, fmt.Errorf("error checking vault: %w", err)
	}
	if exists {
		return false, nil
	}

	err = s.repomanager.Transactor().WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if gate != nil {
			if err := gate(ctx, tx, vaultID); err != nil {
				return err
			}
		}
		var err error
		created, err = s.repomanager.Vaults(tx).Create(ctx, vaultID)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Info(ctx, "vault registered", "vault_id", vaultID)
	}
	return created, nil
}

func (s *VaultService) Exists(ctx context.Context, vaultID string) (bool, error) {
	return s.repomanager.Vaults(s.repomanager.Conn()).Exists(ctx, vaultID)
}

// Manifest lists metadata of the live files in vaultID.
func (s *VaultService) Manifest(ctx context.Context, vaultID string) ([]models.FileMeta, error) {
	return s.repomanager.Files(s.repomanager.Conn()).ListLive(ctx, vaultID)
}

// StoreFile writes f, replacing any record (live or deleted) at the same
// path. With a blob store configured the ciphertext is uploaded first and
// the superseded object is removed afterwards.
func (s *VaultService) StoreFile(ctx context.Context, f *models.File) error {
	unlock := s.locks.Lock(f.VaultID)
	defer unlock()

	repo := s.repomanager.Files(s.repomanager.Conn())

	rec := *f
	rec.StorageKey = ""
	rec.UpdatedAt = s.now()

	var previousKey string
	if s.blobs != nil {
		prev, err := repo.Find(ctx, f.VaultID, f.Path)
		switch {
		case err == nil:
			previousKey = prev.StorageKey
		case !errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("error reading file: %w", err)
		}

		rec.StorageKey = blobstore.NewKey(f.VaultID, rec.UpdatedAt)
		if err := s.blobs.Put(ctx, rec.StorageKey, f.Data); err != nil {
			return fmt.Errorf("error storing blob: %w", err)
		}
		rec.Data = nil
	}

	if err := repo.Upsert(ctx, &rec); err != nil {
		if rec.StorageKey != "" {
			s.dropBlobs(ctx, []string{rec.StorageKey})
		}
		return fmt.Errorf("error storing file: %w", err)
	}

	if previousKey != "" {
		s.dropBlobs(ctx, []string{previousKey})
	}
	return nil
}

// GetFile returns the live record at (vaultID, path) with its ciphertext.
// It holds the vault lock so a concurrent StoreFile cannot drop the blob
// between the row read and the blob fetch.
func (s *VaultService) GetFile(ctx context.Context, vaultID, path string) (*models.File, error) {
	unlock := s.locks.Lock(vaultID)
	defer unlock()

	f, err := s.repomanager.Files(s.repomanager.Conn()).Get(ctx, vaultID, path)
	if err != nil {
		return nil, err
	}

	if f.StorageKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("file %s is offloaded but no blob store is configured: %w", path, common.ErrorInternal)
		}
		data, err := s.blobs.Get(ctx, f.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("error loading blob: %w", err)
		}
		f.Data = data
	}
	return f, nil
}

// DeleteFile tombstones the live record at (vaultID, path).
func (s *VaultService) DeleteFile(ctx context.Context, vaultID, path string) error {
	unlock := s.locks.Lock(vaultID)
	defer unlock()

	return s.repomanager.Files(s.repomanager.Conn()).SoftDelete(ctx, vaultID, path, s.now())
}

func (s *VaultService) DeletedFiles(ctx context.Context, vaultID string) ([]models.FileMeta, error) {
	return s.repomanager.Files(s.repomanager.Conn()).ListDeleted(ctx, vaultID)
}

// RestoreFile clears the tombstone at (vaultID, path). It returns
// common.ErrorNotFound when there is no deleted record there.
func (s *VaultService) RestoreFile(ctx context.Context, vaultID, path string) error {
	unlock := s.locks.Lock(vaultID)
	defer unlock()

	return s.repomanager.Files(s.repomanager.Conn()).Restore(ctx, vaultID, path)
}

// PurgeDeletedFiles hard-removes tombstones older than retention and
// returns how many records were removed.
func (s *VaultService) PurgeDeletedFiles(ctx context.Context, retention time.Duration) (int, error) {
	keys, err := s.repomanager.Files(s.repomanager.Conn()).PurgeDeleted(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("error purging files: %w", err)
	}
	s.dropBlobs(ctx, keys)
	return len(keys), nil
}

// DeleteVault removes vaultID and every file it holds, returning the number
// of file records removed. Unknown vaults yield common.ErrorNotFound.
func (s *VaultService) DeleteVault(ctx context.Context, vaultID string) (int, error) {
	unlock := s.locks.Lock(vaultID)
	defer unlock()

	var keys []string
	err := s.repomanager.Transactor().WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		keys, err = s.repomanager.Files(tx).DeleteByVault(ctx, vaultID)
		if err != nil {
			return err
		}
		return s.repomanager.Vaults(tx).Delete(ctx, vaultID)
	})
	if err != nil {
		return 0, err
	}

	s.dropBlobs(ctx, keys)
	s.logger.Info(ctx, "vault deleted", "vault_id", vaultID, "files_removed", len(keys))
	return len(keys), nil
}

func (s *VaultService) ListVaults(ctx context.Context) ([]models.VaultSummary, error) {
	return s.repomanager.Vaults(s.repomanager.Conn()).List(ctx)
}

// dropBlobs deletes offloaded objects. Failures only leak storage, so they
// are logged and otherwise ignored.
func (s *VaultService) dropBlobs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn(ctx, "failed to delete blob", "key", key, "error", err)
		}
	}
}
