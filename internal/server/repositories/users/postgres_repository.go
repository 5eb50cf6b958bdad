package users

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

const userColumns = `id, identity_subject, email, display_name, created_at,
	session_token, session_started_at, admission_proof_id, alerts_read_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.AppUser) (*models.AppUser, error) {
	query := `INSERT INTO app_users
		(id, identity_subject, email, display_name, session_token, session_started_at, admission_proof_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.IdentitySubject, user.Email, user.DisplayName,
		user.SessionToken, user.SessionStartedAt, user.AdmissionProofID).Scan(&user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetBySubject(ctx context.Context, subject string) (*models.AppUser, error) {
	query := `SELECT ` + userColumns + ` FROM app_users WHERE identity_subject = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, subject))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	query := `SELECT ` + userColumns + ` FROM app_users WHERE email = $1 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) SetSession(ctx context.Context, userID, token string, startedAt time.Time) error {
	query := `UPDATE app_users SET session_token = $2, session_started_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, token, startedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetAlertsReadAt(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE app_users SET alerts_read_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.AppUser, error) {
	user := &models.AppUser{}
	err := row.Scan(&user.ID, &user.IdentitySubject, &user.Email, &user.DisplayName,
		&user.CreatedAt, &user.SessionToken, &user.SessionStartedAt,
		&user.AdmissionProofID, &user.AlertsReadAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
