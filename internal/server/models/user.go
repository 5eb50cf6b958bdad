// Package models defines the persistent records managed by the LayerForge
// server.
package models

import "time"

// AppUser is a provisioned account bound to exactly one external identity.
// SessionToken holds the single currently-valid login; any other token for
// this user has been superseded.
type AppUser struct {
	ID               string
	IdentitySubject  string
	Email            string
	DisplayName      string
	CreatedAt        time.Time
	SessionToken     *string
	SessionStartedAt *time.Time
	AdmissionProofID *string
	AlertsReadAt     *time.Time
}
