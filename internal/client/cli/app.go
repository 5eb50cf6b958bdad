// Package cli implements the interactive LayerForge client: a small REPL
// that signs in against the backend, keeps the session fresh in the
// background, and uploads design files.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/layerforge/layerforge/internal/client/api"
	"github.com/layerforge/layerforge/internal/client/broadcast"
	"github.com/layerforge/layerforge/internal/client/config"
	"github.com/layerforge/layerforge/internal/client/session"
	"github.com/layerforge/layerforge/internal/client/state"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/randx"

	_ "modernc.org/sqlite"
)

// backend is the slice of the API client the commands use. The real
// api.Client satisfies it; tests provide a stub.
type backend interface {
	SetIdentityToken(token string)
	EstablishSession(ctx context.Context, proofID, claimToken string) (*api.EstablishResult, error)
	ClaimProof(ctx context.Context, handle, code string) (*api.ClaimResult, error)
	CreateUpload(ctx context.Context) (*api.UploadTicket, error)
	CommitUpload(ctx context.Context, ticketID string) (string, error)
}

type App struct {
	config      *config.Config
	api         backend
	store       state.Store
	coordinator *session.Coordinator
	logger      logging.Logger
	reader      *bufio.Reader
	out         io.Writer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewDefault()

	db, err := state.InitDatabase(ctx, c.DatabaseFile)
	if err != nil {
		logger.Error(ctx, "error initializing local database", "error", err.Error())
		return nil, err
	}
	store := state.NewSQLiteStore(db)

	apiClient := api.New(c.ServerBaseURL)

	var bus broadcast.Bus
	if c.BroadcastDir != "" {
		instanceID := os.Getenv("LAYERFORGE_INSTANCE_ID")
		if instanceID == "" {
			instanceID = randx.NewToken()
		}
		bus, err = broadcast.NewUnixBus(c.BroadcastDir, instanceID)
		if err != nil {
			logger.Warn(ctx, "duplicate detection disabled", "error", err.Error())
			bus = nil
		}
	}

	coordinator := session.NewCoordinator(store, apiClient, bus, logger, c.RevalidateInterval)

	return &App{
		config:      c,
		api:         apiClient,
		store:       store,
		coordinator: coordinator,
		logger:      logger,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}, nil
}

// Run restores persisted state, starts background revalidation, and enters
// the REPL. It returns when the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.coordinator.Load(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = a.coordinator.Run(ctx)
	}()

	a.Root(ctx)
	return nil
}

func (a *App) isLoggedIn() bool {
	st := a.coordinator.State()
	return st == session.StateValid || st == session.StateAwaitingValidation
}
