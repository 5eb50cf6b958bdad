package uploads

import (
	"context"
	"time"

	"github.com/layerforge/layerforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, upload *models.PendingUpload) (*models.PendingUpload, error)
	GetByID(ctx context.Context, id string) (*models.PendingUpload, error)
	Consume(ctx context.Context, id string, at time.Time) error
}
