// Package server initializes and runs the LayerForge backend: it opens the
// database, runs migrations, wires the services, and serves HTTP until
// interrupted.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/server/billing"
	"github.com/layerforge/layerforge/internal/server/config"
	"github.com/layerforge/layerforge/internal/server/httpapi"
	"github.com/layerforge/layerforge/internal/server/identity"
	"github.com/layerforge/layerforge/internal/server/ratelimit"
	"github.com/layerforge/layerforge/internal/server/repositories/repomanager"
	"github.com/layerforge/layerforge/internal/server/services"
	"github.com/layerforge/layerforge/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	http   *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	admission := services.NewAdmissionService(db, rm,
		ratelimit.NewKeyedLimiter(services.ClaimQuota, services.ClaimWindow), logger)
	sessions := services.NewSessionService(db, rm, admission,
		ratelimit.NewKeyedLimiter(services.EstablishQuota, services.EstablishWindow), logger)

	provider := billing.NewHTTPProvider(cfg.BillingAPIBase, cfg.BillingSecretKey)
	catalog := services.NewCatalogService(db, rm, provider, cfg.BillingCatalogTag, logger)

	signer := storage.NewS3Signer(storage.S3Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	})
	uploads := services.NewUploadService(db, rm, signer, cfg.UploadTicketValidity, logger)

	verifier := identity.NewJWTVerifier([]byte(cfg.IdentitySecret))

	httpServer := httpapi.NewServer(cfg.EndpointAddr, cfg.SiteOrigin, cfg.OperatorKeyHash,
		verifier, sessions, admission, catalog, uploads, logger)

	return &App{config: cfg, logger: logger, db: db, http: httpServer}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
