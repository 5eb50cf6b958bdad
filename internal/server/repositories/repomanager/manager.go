package repomanager

import (
	"context"
	"database/sql"

	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/server/repositories/admins"
	"github.com/layerforge/layerforge/internal/server/repositories/appstate"
	"github.com/layerforge/layerforge/internal/server/repositories/catalog"
	"github.com/layerforge/layerforge/internal/server/repositories/proofs"
	"github.com/layerforge/layerforge/internal/server/repositories/uploads"
	"github.com/layerforge/layerforge/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
// Services pass either their *sql.DB or a dbx.WithTx handle, so the same
// code path works inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Proofs(db dbx.DBTX) proofs.Repository
	AppState(db dbx.DBTX) appstate.Repository
	Catalog(db dbx.DBTX) catalog.Repository
	Uploads(db dbx.DBTX) uploads.Repository
	Admins(db dbx.DBTX) admins.Repository
}
