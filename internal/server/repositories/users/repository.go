package users

import (
	"context"
	"time"

	"github.com/layerforge/layerforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.AppUser) (*models.AppUser, error)
	GetBySubject(ctx context.Context, subject string) (*models.AppUser, error)
	GetByEmail(ctx context.Context, email string) (*models.AppUser, error)
	SetSession(ctx context.Context, userID, token string, startedAt time.Time) error
	SetAlertsReadAt(ctx context.Context, userID string, at time.Time) error
}
