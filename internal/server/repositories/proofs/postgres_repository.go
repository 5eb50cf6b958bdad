package proofs

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

const proofColumns = `id, handle, handle_normalized, access_code, tier,
	consumed_by, consumed_at, claim_token, claim_expires_at, created_at`

func (r *PostgresRepository) Create(ctx context.Context, proof *models.AdmissionProof) (*models.AdmissionProof, error) {
	query := `INSERT INTO admission_proofs (id, handle, handle_normalized, access_code, tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		proof.ID, proof.Handle, proof.HandleNormalized, proof.AccessCode, proof.Tier).Scan(&proof.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return proof, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.AdmissionProof, error) {
	query := `SELECT ` + proofColumns + ` FROM admission_proofs WHERE id = $1`
	return scanProof(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByHandleAndCode(ctx context.Context, normalizedHandle, code string) (*models.AdmissionProof, error) {
	query := `SELECT ` + proofColumns + ` FROM admission_proofs
		WHERE handle_normalized = $1 AND access_code = $2
		LIMIT 1`
	return scanProof(r.db.QueryRowContext(ctx, query, normalizedHandle, code))
}

func (r *PostgresRepository) ListUnnormalized(ctx context.Context) ([]*models.AdmissionProof, error) {
	query := `SELECT ` + proofColumns + ` FROM admission_proofs WHERE handle_normalized = ''`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AdmissionProof
	for rows.Next() {
		proof := &models.AdmissionProof{}
		if err := rows.Scan(&proof.ID, &proof.Handle, &proof.HandleNormalized,
			&proof.AccessCode, &proof.Tier, &proof.ConsumedBy, &proof.ConsumedAt,
			&proof.ClaimToken, &proof.ClaimExpiresAt, &proof.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, proof)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SetClaim(ctx context.Context, id, claimToken string, expiresAt time.Time) error {
	query := `UPDATE admission_proofs SET claim_token = $2, claim_expires_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, claimToken, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id, userID string, at time.Time) error {
	query := `UPDATE admission_proofs
		SET consumed_by = $2, consumed_at = $3, claim_token = NULL, claim_expires_at = NULL
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func scanProof(row *sql.Row) (*models.AdmissionProof, error) {
	proof := &models.AdmissionProof{}
	err := row.Scan(&proof.ID, &proof.Handle, &proof.HandleNormalized,
		&proof.AccessCode, &proof.Tier, &proof.ConsumedBy, &proof.ConsumedAt,
		&proof.ClaimToken, &proof.ClaimExpiresAt, &proof.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return proof, nil
}
