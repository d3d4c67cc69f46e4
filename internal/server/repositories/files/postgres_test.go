package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const upsertQ = `(?s)^INSERT\s+INTO\s+files\b.*ON\s+CONFLICT\s*\(vault_id, path\)\s*DO\s+UPDATE\s+SET\b.*deleted = FALSE.*deleted_at = NULL`

func sampleFile() *models.File {
	return &models.File{
		VaultID:      "v1",
		Path:         "notes/a.md",
		IV:           []byte("iv"),
		Tag:          []byte("tag"),
		Data:         []byte("ciphertext"),
		Hash:         "h1",
		Size:         10,
		ModifiedAt:   1700000000000,
		OriginalPath: "Notes/A.md",
	}
}

func TestUpsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).
		WithArgs("v1", "notes/a.md", []byte("iv"), []byte("tag"), []byte("ciphertext"), "h1", int64(10), int64(1700000000000), "Notes/A.md", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), sampleFile()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), sampleFile())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpsert_MissingVault(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(upsertQ).WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	err := repo.Upsert(context.Background(), sampleFile())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"vault_id", "path", "iv", "tag", "data", "hash", "size", "modified_at", "original_path", "storage_key", "updated_at"}).
		AddRow("v1", "notes/a.md", []byte("iv"), []byte("tag"), []byte("ciphertext"), "h1", int64(10), int64(1700000000000), "Notes/A.md", "", updated)

	mock.ExpectQuery(`(?s)SELECT vault_id, path, iv, tag, data.*FROM files\s+WHERE vault_id = \$1 AND path = \$2 AND NOT deleted`).
		WithArgs("v1", "notes/a.md").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "v1", "notes/a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Data) != "ciphertext" || string(got.IV) != "iv" || string(got.Tag) != "tag" || got.Size != 10 || got.Hash != "h1" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Fatalf("unexpected updated_at: %v", got.UpdatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT vault_id, path, iv`).
		WithArgs("v1", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "v1", "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT vault_id, path, iv`).WillReturnError(errors.New("boom"))

	_, err := repo.Get(context.Background(), "v1", "p")
	if err == nil || errors.Is(err, common.ErrorNotFound) || !regexp.MustCompile(`db error: .*boom`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_ReturnsTombstone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	deletedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"vault_id", "path", "hash", "size", "modified_at", "original_path", "storage_key", "deleted", "deleted_at"}).
		AddRow("v1", "p", "h", int64(3), int64(5), "p", "vaults/v1/k", true, deletedAt)

	mock.ExpectQuery(`(?s)SELECT vault_id, path, hash.*WHERE vault_id = \$1 AND path = \$2\s*$`).
		WithArgs("v1", "p").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "v1", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Deleted || got.DeletedAt == nil || !got.DeletedAt.Equal(deletedAt) || got.StorageKey != "vaults/v1/k" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT vault_id, path, hash`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "v1", "p")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestListLive_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"path", "hash", "size", "modified_at", "original_path", "deleted_at"}).
		AddRow("a.md", "h1", int64(1), int64(10), "A.md", nil).
		AddRow("b.md", "h2", int64(2), int64(20), "b.md", nil)

	mock.ExpectQuery(`(?s)SELECT path, hash, size, modified_at, original_path, deleted_at\s+FROM files\s+WHERE vault_id = \$1 AND NOT deleted\s+ORDER BY path`).
		WithArgs("v1").
		WillReturnRows(rows)

	got, err := repo.ListLive(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].Path != "a.md" || got[0].OriginalPath != "A.md" || got[0].DeletedAt != nil {
		t.Fatalf("bad row[0]: %+v", got[0])
	}
	if got[1].Path != "b.md" || got[1].Size != 2 || got[1].ModifiedAt != 20 {
		t.Fatalf("bad row[1]: %+v", got[1])
	}
}

func TestListLive_EmptyIsNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT path, hash`).WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"path", "hash", "size", "modified_at", "original_path", "deleted_at"}))

	got, err := repo.ListLive(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestListLive_QueryErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT path, hash`).WillReturnError(errors.New("db err"))

	_, err := repo.ListLive(context.Background(), "v1")
	if err == nil || !regexp.MustCompile(`failed to select files: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped select error, got %v", err)
	}
}

func TestListLive_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"path", "hash", "size", "modified_at", "original_path", "deleted_at"}).
		AddRow("a.md", "h1", int64(1), int64(10), "a.md", nil).
		AddRow("b.md", "h2", int64(2), int64(20), "b.md", nil).
		RowError(1, errors.New("row-err"))
	mock.ExpectQuery(`SELECT path, hash`).WillReturnRows(rows)

	_, err := repo.ListLive(context.Background(), "v1")
	if err == nil || err.Error() != "row-err" {
		t.Fatalf("expected rows.Err 'row-err', got %v", err)
	}
}

func TestListDeleted_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	deletedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"path", "hash", "size", "modified_at", "original_path", "deleted_at"}).
		AddRow("gone.md", "h", int64(4), int64(40), "gone.md", deletedAt)

	mock.ExpectQuery(`(?s)WHERE vault_id = \$1 AND deleted\s+ORDER BY deleted_at DESC`).
		WithArgs("v1").
		WillReturnRows(rows)

	got, err := repo.ListDeleted(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DeletedAt == nil || !got[0].DeletedAt.Equal(deletedAt) {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestSoftDelete_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`UPDATE files SET deleted = TRUE, deleted_at = \$3.*AND NOT deleted`).
		WithArgs("v1", "p", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SoftDelete(context.Background(), "v1", "p", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSoftDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE files SET deleted = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "v1", "p", time.Now())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestSoftDelete_RowsAffectedErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE files SET deleted = TRUE`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.SoftDelete(context.Background(), "v1", "p", time.Now())
	if err == nil || !regexp.MustCompile(`rows affected error: .*rows-err`).MatchString(err.Error()) {
		t.Fatalf("expected rows affected error, got %v", err)
	}
}

func TestRestore_OK(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE files SET deleted = FALSE, deleted_at = NULL.*AND deleted`).
		WithArgs("v1", "p").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Restore(context.Background(), "v1", "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRestore_NotDeleted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE files SET deleted = FALSE`).
		WithArgs("v1", "p").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Restore(context.Background(), "v1", "p"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}

func TestPurgeDeleted_ReturnsKeys(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	before := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectQuery(`DELETE FROM files WHERE deleted AND deleted_at < \$1 RETURNING storage_key`).
		WithArgs(before).
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("").AddRow("vaults/v1/x"))

	keys, err := repo.PurgeDeleted(context.Background(), before)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[1] != "vaults/v1/x" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPurgeDeleted_QueryErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM files WHERE deleted`).WillReturnError(errors.New("db err"))

	_, err := repo.PurgeDeleted(context.Background(), time.Now())
	if err == nil || !regexp.MustCompile(`failed to delete files: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped delete error, got %v", err)
	}
}

func TestDeleteByVault_ReturnsKeys(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM files WHERE vault_id = \$1 RETURNING storage_key`).
		WithArgs("v1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("").AddRow("").AddRow(""))

	keys, err := repo.DeleteByVault(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("want 3 keys, got %d", len(keys))
	}
}
