package models

import "time"

// PendingUpload is a short-lived ticket binding an uploaded blob to the
// uploading user for a bounded window. Commit is one-time consumption:
// a different user, an expired ticket, or a reused ticket are all rejected.
type PendingUpload struct {
	ID         string
	UserID     string
	StorageKey string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the ticket window has passed at instant now.
func (p *PendingUpload) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
