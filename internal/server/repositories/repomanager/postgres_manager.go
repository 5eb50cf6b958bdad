// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/server/migrations"
	"github.com/layerforge/layerforge/internal/server/repositories/admins"
	"github.com/layerforge/layerforge/internal/server/repositories/appstate"
	"github.com/layerforge/layerforge/internal/server/repositories/catalog"
	"github.com/layerforge/layerforge/internal/server/repositories/proofs"
	"github.com/layerforge/layerforge/internal/server/repositories/uploads"
	"github.com/layerforge/layerforge/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Proofs(db dbx.DBTX) proofs.Repository {
	return proofs.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) AppState(db dbx.DBTX) appstate.Repository {
	return appstate.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Catalog(db dbx.DBTX) catalog.Repository {
	return catalog.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Uploads(db dbx.DBTX) uploads.Repository {
	return uploads.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Admins(db dbx.DBTX) admins.Repository {
	return admins.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
