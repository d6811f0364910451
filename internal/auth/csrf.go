package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// CSRFCookieName is the storage key, without namespace, of the double-submit token
const CSRFCookieName = "csrf-token"

// GenerateCSRFToken returns 32 random bytes, hex encoded
func GenerateCSRFToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// CSRFTokensMatch compares the header and cookie copies in constant time
func CSRFTokensMatch(header, cookie string) bool {
	if header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}
