package appstate

import (
	"context"
	"fmt"

	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) All(ctx context.Context) ([]*models.AppSetting, error) {
	query := `SELECT id, admission_required, created_at FROM app_settings
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AppSetting
	for rows.Next() {
		s := &models.AppSetting{}
		if err := rows.Scan(&s.ID, &s.AdmissionRequired, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_settings`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, setting *models.AppSetting) error {
	query := `INSERT INTO app_settings (id, admission_required) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, setting.ID, setting.AdmissionRequired); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
