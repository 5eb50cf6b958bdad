package admins

import (
	"context"
	"fmt"

	"github.com/layerforge/layerforge/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) IsAdmin(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM admin_emails WHERE email = $1)`
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Add(ctx context.Context, email string) error {
	query := `INSERT INTO admin_emails (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
