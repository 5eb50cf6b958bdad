// Package randx generates and validates the opaque random identifiers used
// for session tokens, claim tokens, and upload tickets.
package randx

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewToken returns a fresh random identifier in canonical UUIDv4 form.
func NewToken() string {
	return uuid.NewString()
}

// ValidTokenShape reports whether s looks like a token this system could
// have issued. Anything else is rejected up front, before any storage or
// network round trip.
func ValidTokenShape(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// MakeRandHexString generates a random hexadecimal string of the given size
// in bytes; the resulting string is twice as long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
