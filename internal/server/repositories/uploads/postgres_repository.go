package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, upload *models.PendingUpload) (*models.PendingUpload, error) {
	query := `INSERT INTO pending_uploads (id, user_id, storage_key, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query,
		upload.ID, upload.UserID, upload.StorageKey, upload.ExpiresAt).Scan(&upload.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return upload, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.PendingUpload, error) {
	query := `SELECT id, user_id, storage_key, expires_at, consumed_at, created_at
		FROM pending_uploads WHERE id = $1`
	upload := &models.PendingUpload{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&upload.ID, &upload.UserID,
		&upload.StorageKey, &upload.ExpiresAt, &upload.ConsumedAt, &upload.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return upload, nil
}

// Consume marks the ticket used. The consumed_at IS NULL guard makes the
// operation single-winner under concurrent commits.
func (r *PostgresRepository) Consume(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE pending_uploads SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorTicketConsumed
	}
	return nil
}
