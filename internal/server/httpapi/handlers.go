package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/server/models"

	"github.com/gorilla/mux"
)

type establishRequest struct {
	ProofID    string `json:"proof_id,omitempty"`
	ClaimToken string `json:"claim_token,omitempty"`
}

type establishResponse struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	SessionToken string `json:"session_token"`
}

func (s *Server) handleEstablishSession(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "sign in first")
		return
	}

	var req establishRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	grant, err := s.sessions.EstablishSession(r.Context(), id, req.ProofID, req.ClaimToken)
	if err != nil {
		if rle, ok := common.IsRateLimited(err); ok {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error_code":          "RATE_LIMITED",
				"retry_after_seconds": int(rle.RetryAfter.Seconds()) + 1,
			})
			return
		}
		var adm *common.AdmissionError
		if errors.As(err, &adm) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error_code": "ADMISSION_REJECTED",
				"reason":     adm.Reason,
			})
			return
		}
		if errors.Is(err, common.ErrorEmailTaken) {
			writeError(w, http.StatusConflict, "EMAIL_TAKEN", "email already belongs to another account")
			return
		}
		// Unexpected provisioning failures propagate; the front-end shows a
		// retry affordance and nothing is auto-retried here.
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not establish session")
		return
	}

	writeJSON(w, http.StatusOK, establishResponse{
		UserID:       grant.UserID,
		Email:        grant.Email,
		DisplayName:  grant.DisplayName,
		IsAdmin:      grant.IsAdmin,
		SessionToken: grant.SessionToken,
	})
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid  bool                 `json:"valid"`
	Reason common.SessionReason `json:"reason,omitempty"`
}

func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reason := s.sessions.ValidateSession(r.Context(), identityFromContext(r.Context()), req.Token)
	if reason == common.SessionValid {
		writeJSON(w, http.StatusOK, validateResponse{Valid: true})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: false, Reason: reason})
}

func (s *Server) handleAlertsRead(w http.ResponseWriter, r *http.Request) {
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}
	if err := s.sessions.MarkAlertsRead(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not update watermark")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// actingUser resolves the authenticated identity to its ApplicationUser.
// The acting user is never read from the request body: a bearer token only
// ever acts as the account it belongs to. Anonymous callers and identities
// without an account both collapse to not-authenticated.
func (s *Server) actingUser(w http.ResponseWriter, r *http.Request) (*models.AppUser, bool) {
	user, err := s.sessions.ResolveUser(r.Context(), identityFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "sign in first")
		return nil, false
	}
	return user, true
}

type claimRequest struct {
	Handle string `json:"handle"`
	Code   string `json:"code"`
}

func (s *Server) handleClaimProof(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.admission.ClaimProof(r.Context(), req.Handle, req.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not process claim")
		return
	}

	if result.Reason != common.ClaimOK {
		body := map[string]any{"valid": false, "reason": result.Reason}
		if result.Reason == common.ClaimRateLimited {
			body["retry_after_seconds"] = int(result.RetryAfter.Seconds()) + 1
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":            true,
		"proof_id":         result.ProofID,
		"tier":             result.Tier,
		"claim_token":      result.ClaimToken,
		"claim_expires_at": result.ClaimExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleResolvePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	price, err := s.catalog.ResolvePrice(r.Context(), q.Get("tier"), q.Get("interval"), q.Get("audience"))
	if err != nil {
		if errors.Is(err, common.ErrorPriceNotConfigured) || errors.Is(err, common.ErrorPriceAmbiguous) {
			writeError(w, http.StatusConflict, "PRICE_CONFIGURATION", "pricing unavailable, contact support")
			return
		}
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusConflict, "PRICE_CONFIGURATION", "pricing unavailable, contact support")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not resolve price")
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}

	ticket, err := s.uploads.CreatePendingUpload(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not create upload ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id":   ticket.ID,
		"storage_key": ticket.StorageKey,
		"url":         ticket.URL,
		"expires_at":  ticket.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *Server) handleCommitUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}

	url, err := s.uploads.CommitUpload(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			writeError(w, http.StatusNotFound, "TICKET_NOT_FOUND", "unknown upload ticket")
		case errors.Is(err, common.ErrorTicketForeign):
			writeError(w, http.StatusForbidden, "TICKET_FOREIGN", "ticket belongs to another user")
		case errors.Is(err, common.ErrorTicketExpired):
			writeError(w, http.StatusGone, "TICKET_EXPIRED", "upload window passed")
		case errors.Is(err, common.ErrorTicketConsumed):
			writeError(w, http.StatusConflict, "TICKET_CONSUMED", "ticket already committed")
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not commit upload")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"download_url": url})
}

func (s *Server) handleCatalogSync(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Sync(r.Context()); err != nil {
		// The raw provider error goes back to the operator; end users keep
		// being served the last good snapshot.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error_code":    "SYNC_FAILED",
			"error_message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"synced": true})
}

func (s *Server) handleCatalogStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.catalog.Snapshot(r.Context())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "NO_SNAPSHOT", "catalog never synced")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not read snapshot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products":      len(snapshot.Payload.Products),
		"prices":        len(snapshot.Payload.Prices),
		"synced_at":     snapshot.SyncedAt,
		"last_error":    snapshot.LastError,
		"last_error_at": snapshot.LastErrorAt,
	})
}

func (s *Server) handleSeedProof(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
		Code   string `json:"code"`
		Tier   string `json:"tier"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Handle == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "handle and code are required")
		return
	}

	proof, err := s.admission.SeedProof(r.Context(), req.Handle, req.Code, req.Tier)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not create proof")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"proof_id": proof.ID})
}

func (s *Server) handleSetAdmission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Required bool `json:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.admission.SetAdmissionRequired(r.Context(), req.Required); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not update admission flag")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"required": req.Required})
}
