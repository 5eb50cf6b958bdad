package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/dbx"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/randx"
	"github.com/layerforge/layerforge/internal/server/models"
	"github.com/layerforge/layerforge/internal/server/repositories/repomanager"

	"github.com/google/uuid"
)

const (
	claimTokenValidity = 10 * time.Minute

	// ClaimQuota bounds claim attempts per normalized handle per window.
	ClaimQuota  = 5
	ClaimWindow = time.Minute
)

// ClaimResult is the outcome of a proof claim attempt. Reason is always set;
// the token fields are only set when Reason is ClaimOK.
type ClaimResult struct {
	Reason         common.ClaimReason
	RetryAfter     time.Duration
	ProofID        string
	Tier           string
	ClaimToken     string
	ClaimExpiresAt time.Time
}

// AdmissionService decides whether a brand-new user may be created and
// handles the proof-claim step that precedes gated signup.
type AdmissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	limiter     keyedLimiter
	logger      logging.Logger
	now         func() time.Time
}

func NewAdmissionService(db *sql.DB, rm repomanager.RepositoryManager, limiter keyedLimiter, logger logging.Logger) *AdmissionService {
	return &AdmissionService{
		db:          db,
		repomanager: rm,
		limiter:     limiter,
		logger:      logger.With("module", "admission_service"),
		now:         time.Now,
	}
}

// NormalizeHandle is the canonical form used for case-insensitive matching.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// ClaimProof verifies a handle/code pair and, on a fresh match, mints a new
// time-boxed claim token. Minting overwrites any unexpired prior claim, so
// only the most recent claim attempt is ever valid.
func (s *AdmissionService) ClaimProof(ctx context.Context, handle, code string) (*ClaimResult, error) {
	normalized := NormalizeHandle(handle)

	if ok, retryAfter := s.limiter.Allow(normalized); !ok {
		return &ClaimResult{Reason: common.ClaimRateLimited, RetryAfter: retryAfter}, nil
	}

	proofRepo := s.repomanager.Proofs(s.db)

	proof, err := proofRepo.FindByHandleAndCode(ctx, normalized, code)
	if errors.Is(err, common.ErrorNotFound) {
		proof, err = s.findLegacy(ctx, normalized, code)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &ClaimResult{Reason: common.ClaimInvalidCredentials}, nil
		}
		return nil, fmt.Errorf("error looking up proof: %w", err)
	}

	if proof.Consumed() {
		return &ClaimResult{Reason: common.ClaimAlreadyUsed}, nil
	}

	token := randx.NewToken()
	expiresAt := s.now().Add(claimTokenValidity)
	if err := proofRepo.SetClaim(ctx, proof.ID, token, expiresAt); err != nil {
		return nil, fmt.Errorf("error setting claim: %w", err)
	}

	s.logger.Info(ctx, "proof claimed", "proof_id", proof.ID)

	return &ClaimResult{
		Reason:         common.ClaimOK,
		ProofID:        proof.ID,
		Tier:           proof.Tier,
		ClaimToken:     token,
		ClaimExpiresAt: expiresAt,
	}, nil
}

// findLegacy scans proofs created before handle normalization was
// backfilled and matches them case-insensitively.
func (s *AdmissionService) findLegacy(ctx context.Context, normalized, code string) (*models.AdmissionProof, error) {
	legacy, err := s.repomanager.Proofs(s.db).ListUnnormalized(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range legacy {
		if NormalizeHandle(p.Handle) == normalized && p.AccessCode == code {
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

// authorize is the admission check run inside the provisioning transaction.
// With gating off every identity is admitted and no proof is touched. With
// gating on the caller must present a proof that is unconsumed and whose
// stored claim token exactly matches a non-expired supplied one.
func (s *AdmissionService) authorize(ctx context.Context, tx dbx.DBTX, proofID, claimToken string, now time.Time) (*models.AdmissionProof, common.AdmissionReason, error) {
	required, err := s.admissionRequired(ctx, tx)
	if err != nil {
		return nil, "", err
	}
	if !required {
		return nil, common.AdmissionOK, nil
	}

	if proofID == "" {
		return nil, common.AdmissionProofRequired, nil
	}

	proof, err := s.repomanager.Proofs(tx).GetByID(ctx, proofID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.AdmissionProofNotFound, nil
		}
		return nil, "", err
	}

	if proof.Consumed() {
		return nil, common.AdmissionProofAlreadyUsed, nil
	}
	if proof.ClaimToken == nil || proof.ClaimExpiresAt == nil {
		return nil, common.AdmissionClaimMismatch, nil
	}
	if now.After(*proof.ClaimExpiresAt) {
		return nil, common.AdmissionClaimExpired, nil
	}
	if *proof.ClaimToken != claimToken {
		return nil, common.AdmissionClaimMismatch, nil
	}

	return proof, common.AdmissionOK, nil
}

// AdmissionRequired reads the global admission flag.
func (s *AdmissionService) AdmissionRequired(ctx context.Context) (bool, error) {
	return s.admissionRequired(ctx, s.db)
}

func (s *AdmissionService) admissionRequired(ctx context.Context, db dbx.DBTX) (bool, error) {
	settings, err := s.repomanager.AppState(db).All(ctx)
	if err != nil {
		return false, fmt.Errorf("error reading app settings: %w", err)
	}
	if len(settings) == 0 {
		return false, nil
	}
	// Rows come back newest first; duplicates are resolved on the next write.
	return settings[0].AdmissionRequired, nil
}

// SetAdmissionRequired replaces the flag. The delete-then-insert inside one
// transaction is the explicit most-recent-wins cleanup: after any write
// exactly one row remains.
func (s *AdmissionService) SetAdmissionRequired(ctx context.Context, required bool) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.AppState(tx)
		if err := repo.DeleteAll(ctx); err != nil {
			return err
		}
		return repo.Insert(ctx, &models.AppSetting{
			ID:                uuid.NewString(),
			AdmissionRequired: required,
		})
	})
}

// SeedProof registers a new admission proof, normalizing the handle up
// front. Operator-only.
func (s *AdmissionService) SeedProof(ctx context.Context, handle, code, tier string) (*models.AdmissionProof, error) {
	proof := &models.AdmissionProof{
		ID:               uuid.NewString(),
		Handle:           handle,
		HandleNormalized: NormalizeHandle(handle),
		AccessCode:       code,
		Tier:             tier,
	}
	created, err := s.repomanager.Proofs(s.db).Create(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("error creating proof: %w", err)
	}
	return created, nil
}
