package catalog

import (
	"context"
	"encoding/json"
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

func (r *PostgresRepository) All(ctx context.Context) ([]*models.PricingSnapshot, error) {
	query := `SELECT id, payload, synced_at, last_error, last_error_at, created_at
		FROM pricing_snapshots ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PricingSnapshot
	for rows.Next() {
		s := &models.PricingSnapshot{}
		var payload []byte
		if err := rows.Scan(&s.ID, &payload, &s.SyncedAt, &s.LastError, &s.LastErrorAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(payload, &s.Payload); err != nil {
			return nil, fmt.Errorf("snapshot payload decode: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pricing_snapshots`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Insert(ctx context.Context, snapshot *models.PricingSnapshot) error {
	payload, err := json.Marshal(snapshot.Payload)
	if err != nil {
		return fmt.Errorf("snapshot payload encode: %w", err)
	}
	query := `INSERT INTO pricing_snapshots (id, payload, synced_at, last_error, last_error_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		snapshot.ID, payload, snapshot.SyncedAt, snapshot.LastError, snapshot.LastErrorAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
