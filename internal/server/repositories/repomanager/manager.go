// Package repomanager vends repository implementations bound to a database
// handle and owns the lifetime of the underlying connection pool.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/activationkeys"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/files"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/vaults"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Conn is the non-transactional handle passed to repository factories.
	Conn() dbx.DBTX
	Transactor() dbx.Transactor
	Vaults(db dbx.DBTX) vaults.Repository
	Files(db dbx.DBTX) files.Repository
	ActivationKeys(db dbx.DBTX) activationkeys.Repository
	Close() error
}
