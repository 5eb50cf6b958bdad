package common

// SessionReason is the closed set of outcomes a session validation can
// produce. The values double as wire codes, so server and client branch on
// the same constants instead of message text.
type SessionReason string

const (
	SessionValid              SessionReason = "valid"
	SessionNotAuthenticated   SessionReason = "not_authenticated"
	SessionNoAppUser          SessionReason = "no_app_user"
	SessionInvalidated        SessionReason = "session_invalidated"
	SessionInvalidTokenFormat SessionReason = "invalid_token_format"
)

// ClaimReason is the closed set of outcomes of a proof claim attempt.
type ClaimReason string

const (
	ClaimOK                 ClaimReason = "ok"
	ClaimRateLimited        ClaimReason = "rate_limited"
	ClaimInvalidCredentials ClaimReason = "invalid_credentials"
	ClaimAlreadyUsed        ClaimReason = "already_used"
)

// AdmissionReason is the closed set of reasons an admission check rejects a
// brand-new user while signup is gated.
type AdmissionReason string

const (
	AdmissionOK               AdmissionReason = "ok"
	AdmissionProofRequired    AdmissionReason = "proof_required"
	AdmissionProofNotFound    AdmissionReason = "proof_not_found"
	AdmissionProofAlreadyUsed AdmissionReason = "proof_already_used"
	AdmissionClaimExpired     AdmissionReason = "claim_expired"
	AdmissionClaimMismatch    AdmissionReason = "claim_mismatch"
)

// AdmissionError carries the rejection reason out of the provisioning path
// as a value the caller can branch on.
type AdmissionError struct {
	Reason AdmissionReason
}

func (e *AdmissionError) Error() string {
	return "admission rejected: " + string(e.Reason)
}

func (e *AdmissionError) Is(target error) bool {
	return target == ErrorAdmissionRejected
}
