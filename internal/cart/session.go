package cart

import (
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
)

const sessionKeyPrefix = "sess_"

var sessionKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewSessionKey returns an opaque key: "sess_" followed by 32 hex characters.
func NewSessionKey() string {
	id := uuid.New()
	return sessionKeyPrefix + hex.EncodeToString(id[:])
}

// ValidSessionKey reports whether a client supplied key is acceptable.
func ValidSessionKey(key string) bool {
	return sessionKeyRe.MatchString(key)
}
