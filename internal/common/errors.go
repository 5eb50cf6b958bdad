// Package common defines shared constants, sentinel errors, and the closed
// set of rejection reasons exchanged between the LayerForge server and
// client. Callers should use errors.Is to match sentinel values.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Admission errors surfaced during account provisioning.
	ErrorAdmissionRejected = errors.New("admission rejected")
	ErrorEmailTaken        = errors.New("email already belongs to another identity")

	// Catalog errors.
	ErrorPriceNotConfigured = errors.New("price not configured")
	ErrorPriceAmbiguous     = errors.New("price selection ambiguous")

	// Upload ticket errors.
	ErrorTicketExpired  = errors.New("upload ticket expired")
	ErrorTicketConsumed = errors.New("upload ticket already consumed")
	ErrorTicketForeign  = errors.New("upload ticket belongs to a different user")
)

// RateLimitError reports that a quota was exceeded and how long the caller
// should wait before retrying. It is returned as a value, never encoded in
// message text the caller would have to parse.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// IsRateLimited unwraps err and returns the RateLimitError if present.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
