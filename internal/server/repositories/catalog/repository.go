package catalog

import (
	"context"

	"github.com/layerforge/layerforge/internal/server/models"
)

// Repository persists the logical PricingSnapshot singleton with the same
// newest-wins duplicate policy as app settings.
type Repository interface {
	All(ctx context.Context) ([]*models.PricingSnapshot, error)
	DeleteAll(ctx context.Context) error
	Insert(ctx context.Context, snapshot *models.PricingSnapshot) error
}
