package models

import "time"

// AdmissionProof is a pre-distributed eligibility credential (handle plus
// one-time access code) gating signup during restricted-access periods.
//
// Lifecycle: unclaimed -> claimed (ClaimToken set, time-boxed) -> consumed
// (ClaimToken cleared, ConsumedBy/ConsumedAt set). Consumption is terminal;
// an expired claim just allows a fresh claim attempt.
type AdmissionProof struct {
	ID               string
	Handle           string
	HandleNormalized string
	AccessCode       string
	Tier             string
	ConsumedBy       *string
	ConsumedAt       *time.Time
	ClaimToken       *string
	ClaimExpiresAt   *time.Time
	CreatedAt        time.Time
}

// Consumed reports whether the proof has been used to provision a user.
func (p *AdmissionProof) Consumed() bool {
	return p.ConsumedBy != nil
}
