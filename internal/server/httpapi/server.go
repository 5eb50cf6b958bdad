package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/server/identity"
	"github.com/layerforge/layerforge/internal/server/services"

	"github.com/gorilla/mux"
)

// Server wires the services into an HTTP listener.
type Server struct {
	addr            string
	siteOrigin      string
	operatorKeyHash string
	verifier        identity.Verifier
	sessions        *services.SessionService
	admission       *services.AdmissionService
	catalog         *services.CatalogService
	uploads         *services.UploadService
	logger          logging.Logger
}

func NewServer(addr, siteOrigin, operatorKeyHash string, verifier identity.Verifier,
	sessions *services.SessionService, admission *services.AdmissionService,
	catalog *services.CatalogService, uploads *services.UploadService,
	logger logging.Logger) *Server {
	return &Server{
		addr:            addr,
		siteOrigin:      siteOrigin,
		operatorKeyHash: operatorKeyHash,
		verifier:        verifier,
		sessions:        sessions,
		admission:       admission,
		catalog:         catalog,
		uploads:         uploads,
		logger:          logger.With("module", "http_server"),
	}
}

// Router builds the full route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(securityHeaders)
	r.Use(s.requestLogging)
	r.Use(s.cors)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.identityAuth)

	v1.HandleFunc("/session/establish", s.handleEstablishSession).Methods(http.MethodPost)
	v1.HandleFunc("/session/validate", s.handleValidateSession).Methods(http.MethodPost)
	v1.HandleFunc("/session/alerts-read", s.handleAlertsRead).Methods(http.MethodPost)
	v1.HandleFunc("/admission/claim", s.handleClaimProof).Methods(http.MethodPost)
	v1.HandleFunc("/catalog/price", s.handleResolvePrice).Methods(http.MethodGet)
	v1.HandleFunc("/uploads", s.handleCreateUpload).Methods(http.MethodPost)
	v1.HandleFunc("/uploads/{id}/commit", s.handleCommitUpload).Methods(http.MethodPost)

	ops := v1.PathPrefix("/ops").Subrouter()
	ops.Use(s.operatorAuth)
	ops.HandleFunc("/catalog/sync", s.handleCatalogSync).Methods(http.MethodPost)
	ops.HandleFunc("/catalog", s.handleCatalogStatus).Methods(http.MethodGet)
	ops.HandleFunc("/proofs", s.handleSeedProof).Methods(http.MethodPost)
	ops.HandleFunc("/admission", s.handleSetAdmission).Methods(http.MethodPut)

	return r
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.Router(),
		Addr:         s.addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
