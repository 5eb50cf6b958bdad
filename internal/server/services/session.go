// Package services contains server-side business logic. This file implements
// SessionService, the sole arbiter of which session token is current for an
// identity: it provisions accounts on first sign-in (through the admission
// gate) and replaces the stored token on every sign-in.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/randx"
	"github.com/layerforge/layerforge/internal/server/identity"
	"github.com/layerforge/layerforge/internal/server/models"
	"github.com/layerforge/layerforge/internal/server/repositories/repomanager"

	"github.com/google/uuid"
)

const (
	// EstablishQuota bounds sign-in attempts per identity per window.
	EstablishQuota  = 5
	EstablishWindow = time.Minute
)

// SessionGrant is the result of a successful sign-in.
type SessionGrant struct {
	UserID       string
	Email        string
	DisplayName  string
	IsAdmin      bool
	SessionToken string
}

// SessionService issues and validates session tokens.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	admission   *AdmissionService
	limiter     keyedLimiter
	logger      logging.Logger
	now         func() time.Time
}

// keyedLimiter is the slice of ratelimit.KeyedLimiter the services need.
type keyedLimiter interface {
	Allow(key string) (bool, time.Duration)
}

func NewSessionService(db *sql.DB, rm repomanager.RepositoryManager, admission *AdmissionService, limiter keyedLimiter, logger logging.Logger) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: rm,
		admission:   admission,
		limiter:     limiter,
		logger:      logger.With("module", "session_service"),
		now:         time.Now,
	}
}

// EstablishSession signs the identity in. An existing user only has its
// session fields replaced; a brand-new identity must pass the admission
// gate first. Token assignment is an unconditional overwrite: the last
// sign-in wins and every other device's token becomes stale.
func (s *SessionService) EstablishSession(ctx context.Context, id *identity.Identity, proofID, claimToken string) (*SessionGrant, error) {
	if id == nil {
		return nil, common.ErrorUnauthorized
	}

	if ok, retryAfter := s.limiter.Allow(id.Subject); !ok {
		return nil, &common.RateLimitError{RetryAfter: retryAfter}
	}

	now := s.now()
	token := randx.NewToken()

	userRepo := s.repomanager.Users(s.db)
	user, err := userRepo.GetBySubject(ctx, id.Subject)
	switch {
	case err == nil:
		if err := userRepo.SetSession(ctx, user.ID, token, now); err != nil {
			return nil, fmt.Errorf("error replacing session: %w", err)
		}
	case errors.Is(err, common.ErrorNotFound):
		user, err = s.provisionUser(ctx, id, proofID, claimToken, token, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	isAdmin, err := s.repomanager.Admins(s.db).IsAdmin(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking admin list: %w", err)
	}

	s.logger.Info(ctx, "session established", "user_id", user.ID)

	return &SessionGrant{
		UserID:       user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		IsAdmin:      isAdmin,
		SessionToken: token,
	}, nil
}

// provisionUser creates the ApplicationUser for a first sign-in. The
// admission check, the proof consumption, and the insert run in one
// transaction so a failed insert cannot strand a consumed proof.
func (s *SessionService) provisionUser(ctx context.Context, id *identity.Identity, proofID, claimToken, token string, now time.Time) (*models.AppUser, error) {
	var created *models.AppUser

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		proof, reason, err := s.admission.authorize(ctx, tx, proofID, claimToken, now)
		if err != nil {
			return err
		}
		if reason != common.AdmissionOK {
			return &common.AdmissionError{Reason: reason}
		}

		// Best-effort uniqueness: the schema does not enforce one user per
		// email, so scan before inserting.
		userRepo := s.repomanager.Users(tx)
		if existing, err := userRepo.GetByEmail(ctx, id.Email); err == nil {
			if existing.IdentitySubject != id.Subject {
				return common.ErrorEmailTaken
			}
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		user := &models.AppUser{
			ID:               uuid.NewString(),
			IdentitySubject:  id.Subject,
			Email:            id.Email,
			DisplayName:      id.Name,
			SessionToken:     &token,
			SessionStartedAt: &now,
		}
		if proof != nil {
			user.AdmissionProofID = &proof.ID
		}

		created, err = userRepo.Create(ctx, user)
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}

		if proof != nil {
			if err := s.repomanager.Proofs(tx).Consume(ctx, proof.ID, created.ID, now); err != nil {
				return fmt.Errorf("error consuming proof: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user provisioned", "user_id", created.ID)
	return created, nil
}

// ValidateSession reports whether candidateToken is still the current
// session for the identity. Failures never raise: a malformed token is
// rejected before any lookup, a missing identity collapses to
// not_authenticated, and only a lexical match with the stored token counts
// as valid.
func (s *SessionService) ValidateSession(ctx context.Context, id *identity.Identity, candidateToken string) common.SessionReason {
	if !randx.ValidTokenShape(candidateToken) {
		return common.SessionInvalidTokenFormat
	}
	if id == nil {
		return common.SessionNotAuthenticated
	}

	user, err := s.repomanager.Users(s.db).GetBySubject(ctx, id.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.SessionNoAppUser
		}
		s.logger.Error(ctx, "session lookup failed", "error", err.Error())
		return common.SessionNotAuthenticated
	}

	if user.SessionToken == nil || *user.SessionToken != candidateToken {
		return common.SessionInvalidated
	}
	return common.SessionValid
}

// ResolveUser maps an authenticated identity to its ApplicationUser. The
// acting user is always derived this way on the server; it is never taken
// from request payloads, so a caller cannot act as anyone but themselves.
func (s *SessionService) ResolveUser(ctx context.Context, id *identity.Identity) (*models.AppUser, error) {
	if id == nil {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Users(s.db).GetBySubject(ctx, id.Subject)
}

// MarkAlertsRead moves the user's alert-read watermark to now.
func (s *SessionService) MarkAlertsRead(ctx context.Context, userID string) error {
	return s.repomanager.Users(s.db).SetAlertsReadAt(ctx, userID, s.now())
}
