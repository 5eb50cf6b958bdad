package appstate

import (
	"context"

	"github.com/layerforge/layerforge/internal/server/models"
)

// Repository persists the logical AppSetting singleton. Returning all rows
// lets the service apply the newest-wins cleanup policy inside one
// transaction.
type Repository interface {
	All(ctx context.Context) ([]*models.AppSetting, error)
	DeleteAll(ctx context.Context) error
	Insert(ctx context.Context, setting *models.AppSetting) error
}
