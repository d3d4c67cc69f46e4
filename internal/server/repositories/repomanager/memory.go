package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/activationkeys"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/files"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/memory"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/vaults"
)

// InMemoryRepositoryManager serves every factory from one shared memory.DB;
// the handle argument is ignored.
type InMemoryRepositoryManager struct {
	db *memory.DB
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{db: memory.NewDB()}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Conn() dbx.DBTX                      { return nil }
func (m *InMemoryRepositoryManager) Transactor() dbx.Transactor          { return dbx.NopTransactor{} }
func (m *InMemoryRepositoryManager) Close() error                        { return nil }

func (m *InMemoryRepositoryManager) Vaults(dbx.DBTX) vaults.Repository { return m.db.Vaults() }
func (m *InMemoryRepositoryManager) Files(dbx.DBTX) files.Repository   { return m.db.Files() }
func (m *InMemoryRepositoryManager) ActivationKeys(dbx.DBTX) activationkeys.Repository {
	return m.db.ActivationKeys()
}
