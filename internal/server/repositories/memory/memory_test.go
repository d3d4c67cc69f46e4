package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/activationkeys"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/files"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/vaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ vaults.Repository         = (*VaultRepository)(nil)
	_ files.Repository          = (*FileRepository)(nil)
	_ activationkeys.Repository = (*ActivationKeyRepository)(nil)
)

func TestVaults_CreateExistsDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	vr, fr := db.Vaults(), db.Files()

	created, err := vr.Create(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = vr.Create(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "a", Size: 3}))
	require.NoError(t, fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "b", Size: 4}))

	list, err := vr.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].FileCount)
	assert.Equal(t, int64(7), list[0].TotalSize)

	require.NoError(t, vr.Delete(ctx, "v1"))
	ok, _ := vr.Exists(ctx, "v1")
	assert.False(t, ok)
	_, err = fr.Find(ctx, "v1", "a")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
	assert.True(t, errors.Is(vr.Delete(ctx, "v1"), common.ErrorNotFound))
}

func TestFiles_SoftDeleteRestorePurge(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	fr := db.Files()
	_, err := db.Vaults().Create(ctx, "v1")
	require.NoError(t, err)

	require.NoError(t, fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "old", Data: []byte("x")}))
	require.NoError(t, fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "new", Data: []byte("y"), StorageKey: "k"}))

	now := time.Now()
	require.NoError(t, fr.SoftDelete(ctx, "v1", "old", now.Add(-8*24*time.Hour)))
	require.NoError(t, fr.SoftDelete(ctx, "v1", "new", now.Add(-time.Hour)))
	assert.True(t, errors.Is(fr.SoftDelete(ctx, "v1", "new", now), common.ErrorNotFound))

	_, err = fr.Get(ctx, "v1", "old")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	deleted, err := fr.ListDeleted(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, deleted, 2)
	assert.Equal(t, "new", deleted[0].Path, "newest tombstone first")

	keys, err := fr.PurgeDeleted(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{""}, keys)

	require.NoError(t, fr.Restore(ctx, "v1", "new"))
	assert.True(t, errors.Is(fr.Restore(ctx, "v1", "new"), common.ErrorNotFound))
	got, err := fr.Get(ctx, "v1", "new")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), got.Data)
}

func TestFiles_ReturnedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	fr := db.Files()
	_, err := db.Vaults().Create(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "a", Data: []byte("abc")}))

	got, err := fr.Get(ctx, "v1", "a")
	require.NoError(t, err)
	got.Data[0] = 'z'

	again, err := fr.Get(ctx, "v1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.Data)
}

func TestFiles_UpsertRequiresVault(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	vr, fr := db.Vaults(), db.Files()

	err := fr.Upsert(ctx, &models.File{VaultID: "ghost", Path: "a"})
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = vr.Create(ctx, "v1")
	require.NoError(t, err)
	require.NoError(t, vr.Delete(ctx, "v1"))

	err = fr.Upsert(ctx, &models.File{VaultID: "v1", Path: "a"})
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = vr.Create(ctx, "v1")
	require.NoError(t, err)
	live, err := fr.ListLive(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestActivationKeys_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	kr := NewDB().ActivationKeys()

	require.NoError(t, kr.Create(ctx, &models.ActivationKey{Key: "ABC123", Note: "n"}))
	assert.True(t, errors.Is(kr.Create(ctx, &models.ActivationKey{Key: "ABC123"}), common.ErrorAlreadyExists))

	require.NoError(t, kr.Claim(ctx, "ABC123", "v1", time.Now()))
	assert.True(t, errors.Is(kr.Claim(ctx, "ABC123", "v2", time.Now()), common.ErrorInvalidActivationKey))
	assert.True(t, errors.Is(kr.Claim(ctx, "NOPE", "v2", time.Now()), common.ErrorInvalidActivationKey))

	k, err := kr.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "v1", *k.ClaimedBy)

	require.NoError(t, kr.Create(ctx, &models.ActivationKey{Key: "OFF"}))
	require.NoError(t, kr.Deactivate(ctx, "OFF"))
	assert.True(t, errors.Is(kr.Claim(ctx, "OFF", "v3", time.Now()), common.ErrorInvalidActivationKey))
	assert.True(t, errors.Is(kr.Deactivate(ctx, "NOPE"), common.ErrorNotFound))

	list, err := kr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
