package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/server/billing"
	"github.com/layerforge/layerforge/internal/server/models"
	"github.com/layerforge/layerforge/internal/server/repositories/repomanager"

	"github.com/google/uuid"
)

// syncPageSize bounds each provider listing call.
const syncPageSize = 100

// CatalogService maintains the local mirror of the billing provider's
// catalog and resolves checkout prices from it.
type CatalogService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	provider    billing.Provider
	tag         string
	logger      logging.Logger
	now         func() time.Time
}

func NewCatalogService(db *sql.DB, rm repomanager.RepositoryManager, provider billing.Provider, tag string, logger logging.Logger) *CatalogService {
	return &CatalogService{
		db:          db,
		repomanager: rm,
		provider:    provider,
		tag:         tag,
		logger:      logger.With("module", "catalog_service"),
		now:         time.Now,
	}
}

// Sync refreshes the snapshot wholesale. On any fetch error the prior
// payload is left untouched and only the error fields are updated; there is
// no partial application, retry, or cursor resumption; a failed sync needs
// a full manual re-trigger.
func (s *CatalogService) Sync(ctx context.Context) error {
	payload, err := s.fetchCatalog(ctx)
	if err != nil {
		s.logger.Error(ctx, "catalog sync failed", "error", err.Error())
		if recErr := s.recordSyncError(ctx, err.Error()); recErr != nil {
			return fmt.Errorf("error recording sync failure: %w", recErr)
		}
		return err
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Catalog(tx)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		return repo.Insert(ctx, &models.PricingSnapshot{
			ID:       uuid.NewString(),
			Payload:  *payload,
			SyncedAt: &now,
		})
	})
	if err != nil {
		return fmt.Errorf("error storing snapshot: %w", err)
	}

	s.logger.Info(ctx, "catalog synced",
		"products", len(payload.Products), "prices", len(payload.Prices))
	return nil
}

func (s *CatalogService) fetchCatalog(ctx context.Context) (*models.CatalogPayload, error) {
	payload := &models.CatalogPayload{}
	matchedProducts := make(map[string]bool)

	cursor := ""
	for {
		page, err := s.provider.ListProducts(ctx, cursor, syncPageSize)
		if err != nil {
			return nil, fmt.Errorf("listing products: %w", err)
		}
		for _, p := range page.Products {
			if p.Metadata[billing.MetaTag] != s.tag {
				continue
			}
			matchedProducts[p.ID] = true
			payload.Products = append(payload.Products, models.CatalogProduct{
				ID:   p.ID,
				Name: p.Name,
				Tier: p.Metadata[billing.MetaTier],
			})
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	cursor = ""
	for {
		page, err := s.provider.ListPrices(ctx, cursor, syncPageSize)
		if err != nil {
			return nil, fmt.Errorf("listing prices: %w", err)
		}
		for _, p := range page.Prices {
			if !p.Active {
				continue
			}
			if p.Metadata[billing.MetaTag] != s.tag && !matchedProducts[p.ProductID] {
				continue
			}
			payload.Prices = append(payload.Prices, models.CatalogPrice{
				ID:         p.ID,
				ProductID:  p.ProductID,
				Tier:       p.Metadata[billing.MetaTier],
				Interval:   p.Interval,
				Audience:   p.Metadata[billing.MetaAudience],
				UnitAmount: p.UnitAmount,
				Currency:   p.Currency,
				Active:     p.Active,
			})
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	return payload, nil
}

// recordSyncError writes the failure onto the snapshot while preserving the
// last good payload, creating an empty snapshot-with-error if none exists.
func (s *CatalogService) recordSyncError(ctx context.Context, msg string) error {
	now := s.now()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Catalog(tx)
		existing, err := repo.All(ctx)
		if err != nil {
			return err
		}

		next := &models.PricingSnapshot{
			ID:          uuid.NewString(),
			LastError:   &msg,
			LastErrorAt: &now,
		}
		if len(existing) > 0 {
			next.Payload = existing[0].Payload
			next.SyncedAt = existing[0].SyncedAt
		}

		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		return repo.Insert(ctx, next)
	})
}

// Snapshot returns the current mirror, or ErrorNotFound before the first
// sync.
func (s *CatalogService) Snapshot(ctx context.Context) (*models.PricingSnapshot, error) {
	snapshots, err := s.repomanager.Catalog(s.db).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, common.ErrorNotFound
	}
	return snapshots[0], nil
}

// ResolvePrice selects the single active price matching (tier, interval,
// audience) exactly. Zero and multiple matches are both configuration
// errors: the caller must never guess between prices.
func (s *CatalogService) ResolvePrice(ctx context.Context, tier, interval, audience string) (*models.CatalogPrice, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var match *models.CatalogPrice
	for i := range snapshot.Payload.Prices {
		p := &snapshot.Payload.Prices[i]
		if !p.Active || p.Tier != tier || p.Interval != interval || p.Audience != audience {
			continue
		}
		if match != nil {
			return nil, common.ErrorPriceAmbiguous
		}
		match = p
	}
	if match == nil {
		return nil, common.ErrorPriceNotConfigured
	}
	return match, nil
}
