// Package memory implements the repository interfaces on top of plain maps.
// It backs the relay when no database DSN is configured and is used by
// service-level tests. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
)

type fileKey struct {
	vaultID string
	path    string
}

// DB is the shared state behind the three repositories.
type DB struct {
	mu     sync.Mutex
	vaults map[string]time.Time
	files  map[fileKey]*models.File
	keys   map[string]*models.ActivationKey
	now    func() time.Time
}

func NewDB() *DB {
	return &DB{
		vaults: make(map[string]time.Time),
		files:  make(map[fileKey]*models.File),
		keys:   make(map[string]*models.ActivationKey),
		now:    time.Now,
	}
}

func (db *DB) Vaults() *VaultRepository                 { return &VaultRepository{db: db} }
func (db *DB) Files() *FileRepository                   { return &FileRepository{db: db} }
func (db *DB) ActivationKeys() *ActivationKeyRepository { return &ActivationKeyRepository{db: db} }

func cloneFile(f *models.File) *models.File {
	c := *f
	c.IV = slices.Clone(f.IV)
	c.Tag = slices.Clone(f.Tag)
	c.Data = slices.Clone(f.Data)
	if f.DeletedAt != nil {
		t := *f.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// ---- vaults ----

type VaultRepository struct{ db *DB }

func (r *VaultRepository) Create(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.vaults[id]; ok {
		return false, nil
	}
	r.db.vaults[id] = r.db.now()
	return true, nil
}

func (r *VaultRepository) Exists(_ context.Context, id string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.vaults[id]
	return ok, nil
}

func (r *VaultRepository) List(_ context.Context) ([]models.VaultSummary, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	result := make([]models.VaultSummary, 0, len(r.db.vaults))
	for id, created := range r.db.vaults {
		s := models.VaultSummary{ID: id, CreatedAt: created}
		for k, f := range r.db.files {
			if k.vaultID == id && !f.Deleted {
				s.FileCount++
				s.TotalSize += f.Size
			}
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Delete removes the vault and, like the SQL foreign key, its files.
func (r *VaultRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.vaults[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.db.vaults, id)
	for k := range r.db.files {
		if k.vaultID == id {
			delete(r.db.files, k)
		}
	}
	return nil
}

// ---- files ----

type FileRepository struct{ db *DB }

// Upsert rejects writes into a vault that does not exist, as the files
// foreign key does.
func (r *FileRepository) Upsert(_ context.Context, f *models.File) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.vaults[f.VaultID]; !ok {
		return common.ErrorNotFound
	}
	c := cloneFile(f)
	c.Deleted = false
	c.DeletedAt = nil
	c.UpdatedAt = r.db.now()
	r.db.files[fileKey{f.VaultID, f.Path}] = c
	return nil
}

func (r *FileRepository) Get(_ context.Context, vaultID, path string) (*models.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[fileKey{vaultID, path}]
	if !ok || f.Deleted {
		return nil, common.ErrorNotFound
	}
	return cloneFile(f), nil
}

func (r *FileRepository) Find(_ context.Context, vaultID, path string) (*models.File, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[fileKey{vaultID, path}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := cloneFile(f)
	c.Data = nil
	return c, nil
}

func (r *FileRepository) list(vaultID string, deleted bool) []models.FileMeta {
	result := []models.FileMeta{}
	for k, f := range r.db.files {
		if k.vaultID == vaultID && f.Deleted == deleted {
			result = append(result, cloneFile(f).Meta())
		}
	}
	return result
}

func (r *FileRepository) ListLive(_ context.Context, vaultID string) ([]models.FileMeta, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := r.list(vaultID, false)
	sort.Slice(result, func(i, j int) bool { return strings.Compare(result[i].Path, result[j].Path) < 0 })
	return result, nil
}

func (r *FileRepository) ListDeleted(_ context.Context, vaultID string) ([]models.FileMeta, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := r.list(vaultID, true)
	sort.Slice(result, func(i, j int) bool { return result[i].DeletedAt.After(*result[j].DeletedAt) })
	return result, nil
}

func (r *FileRepository) SoftDelete(_ context.Context, vaultID, path string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[fileKey{vaultID, path}]
	if !ok || f.Deleted {
		return common.ErrorNotFound
	}
	f.Deleted = true
	f.DeletedAt = &at
	f.UpdatedAt = r.db.now()
	return nil
}

func (r *FileRepository) Restore(_ context.Context, vaultID, path string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.files[fileKey{vaultID, path}]
	if !ok || !f.Deleted {
		return common.ErrorNotFound
	}
	f.Deleted = false
	f.DeletedAt = nil
	f.UpdatedAt = r.db.now()
	return nil
}

func (r *FileRepository) PurgeDeleted(_ context.Context, before time.Time) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	keys := []string{}
	for k, f := range r.db.files {
		if f.Deleted && f.DeletedAt != nil && f.DeletedAt.Before(before) {
			keys = append(keys, f.StorageKey)
			delete(r.db.files, k)
		}
	}
	return keys, nil
}

func (r *FileRepository) DeleteByVault(_ context.Context, vaultID string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	keys := []string{}
	for k, f := range r.db.files {
		if k.vaultID == vaultID {
			keys = append(keys, f.StorageKey)
			delete(r.db.files, k)
		}
	}
	return keys, nil
}

// ---- activation keys ----

type ActivationKeyRepository struct{ db *DB }

func cloneKey(k *models.ActivationKey) *models.ActivationKey {
	c := *k
	if k.ClaimedBy != nil {
		s := *k.ClaimedBy
		c.ClaimedBy = &s
	}
	if k.ClaimedAt != nil {
		t := *k.ClaimedAt
		c.ClaimedAt = &t
	}
	return &c
}

func (r *ActivationKeyRepository) Create(_ context.Context, k *models.ActivationKey) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.keys[k.Key]; ok {
		return common.ErrorAlreadyExists
	}
	k.Active = true
	k.ClaimedBy = nil
	k.ClaimedAt = nil
	k.CreatedAt = r.db.now()
	r.db.keys[k.Key] = cloneKey(k)
	return nil
}

func (r *ActivationKeyRepository) Get(_ context.Context, key string) (*models.ActivationKey, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k, ok := r.db.keys[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneKey(k), nil
}

func (r *ActivationKeyRepository) List(_ context.Context) ([]*models.ActivationKey, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]*models.ActivationKey, 0, len(r.db.keys))
	for _, k := range r.db.keys {
		result = append(result, cloneKey(k))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Key < result[j].Key
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ActivationKeyRepository) Claim(_ context.Context, key, vaultID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k, ok := r.db.keys[key]
	if !ok || !k.Redeemable() {
		return common.ErrorInvalidActivationKey
	}
	k.ClaimedBy = &vaultID
	k.ClaimedAt = &at
	return nil
}

func (r *ActivationKeyRepository) Deactivate(_ context.Context, key string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k, ok := r.db.keys[key]
	if !ok {
		return common.ErrorNotFound
	}
	k.Active = false
	return nil
}
