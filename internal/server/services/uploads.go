package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/server/models"
	"github.com/layerforge/layerforge/internal/server/repositories/repomanager"
	"github.com/layerforge/layerforge/internal/server/storage"

	"github.com/google/uuid"
)

// UploadTicket is handed to the client: PUT the blob to URL before
// ExpiresAt, then commit the ticket ID.
type UploadTicket struct {
	ID         string
	StorageKey string
	URL        string
	ExpiresAt  time.Time
}

// UploadService issues and consumes pending-upload tickets binding a blob
// to the uploading user for a bounded window.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	signer      storage.BlobSigner
	validity    time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewUploadService(db *sql.DB, rm repomanager.RepositoryManager, signer storage.BlobSigner, validity time.Duration, logger logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: rm,
		signer:      signer,
		validity:    validity,
		logger:      logger.With("module", "upload_service"),
		now:         time.Now,
	}
}

// CreatePendingUpload mints a ticket plus a presigned PUT URL for it.
func (s *UploadService) CreatePendingUpload(ctx context.Context, userID string) (*UploadTicket, error) {
	key := storage.NewStorageKey(userID)
	expiresAt := s.now().Add(s.validity)

	url, err := s.signer.PresignPut(ctx, key, s.validity)
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}

	upload, err := s.repomanager.Uploads(s.db).Create(ctx, &models.PendingUpload{
		ID:         uuid.NewString(),
		UserID:     userID,
		StorageKey: key,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating upload ticket: %w", err)
	}

	return &UploadTicket{ID: upload.ID, StorageKey: key, URL: url, ExpiresAt: expiresAt}, nil
}

// CommitUpload consumes the ticket once and returns a presigned GET URL for
// the committed blob. A different user, an expired window, and a reused
// ticket are each rejected with their own sentinel.
func (s *UploadService) CommitUpload(ctx context.Context, userID, ticketID string) (string, error) {
	repo := s.repomanager.Uploads(s.db)

	upload, err := repo.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if upload.UserID != userID {
		return "", common.ErrorTicketForeign
	}
	now := s.now()
	if upload.Expired(now) {
		return "", common.ErrorTicketExpired
	}
	if upload.ConsumedAt != nil {
		return "", common.ErrorTicketConsumed
	}

	if err := repo.Consume(ctx, ticketID, now); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "upload committed", "ticket_id", ticketID, "user_id", userID)

	url, err := s.signer.PresignGet(ctx, upload.StorageKey, s.validity)
	if err != nil {
		return "", fmt.Errorf("error presigning download: %w", err)
	}
	return url, nil
}
