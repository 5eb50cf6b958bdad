package proofs

import (
	"context"
	"time"

	"github.com/layerforge/layerforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, proof *models.AdmissionProof) (*models.AdmissionProof, error)
	GetByID(ctx context.Context, id string) (*models.AdmissionProof, error)
	// FindByHandleAndCode matches against the normalized handle column.
	FindByHandleAndCode(ctx context.Context, normalizedHandle, code string) (*models.AdmissionProof, error)
	// ListUnnormalized returns legacy rows whose handle_normalized was never
	// backfilled, for the fallback linear scan.
	ListUnnormalized(ctx context.Context) ([]*models.AdmissionProof, error)
	SetClaim(ctx context.Context, id, claimToken string, expiresAt time.Time) error
	Consume(ctx context.Context, id, userID string, at time.Time) error
}
