package auth

import (
	"regexp"
	"strings"

	"github.com/agentstore/storefront-auth/pkg/sanitize"
)

const (
	MaxEmailLen      = 254
	MaxEmailLocalLen = 64
)

var (
	// Markup and script fragments that never belong in an address
	dangerousEmailPattern = regexp.MustCompile(`(?i)<script|</script|javascript:|vbscript:|on\w+\s*=|<iframe|<object|<embed|<svg|data:text/html|expression\(`)

	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]{1,64}@[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*\.[a-zA-Z]{2,63}$`)
)

// NormalizeEmail lowercases and trims an address. It does not validate.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail reports whether raw is an acceptable address. No network access.
func ValidateEmail(raw string) bool {
	if raw == "" || len(raw) > MaxEmailLen {
		return false
	}

	if dangerousEmailPattern.MatchString(raw) {
		return false
	}

	if strings.Contains(raw, "..") || strings.HasPrefix(raw, ".") || strings.HasSuffix(raw, ".") {
		return false
	}

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at > MaxEmailLocalLen {
		return false
	}
	local := raw[:at]
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return false
	}

	return emailPattern.MatchString(raw)
}

// CleanEmail normalizes and sanitizes raw and reports whether the result is a
// valid address. Input that sanitizing would alter is rejected rather than
// silently rewritten.
func CleanEmail(raw string) (string, bool) {
	email := NormalizeEmail(raw)
	if sanitize.Sanitize(email) != email {
		return "", false
	}
	if !ValidateEmail(email) {
		return "", false
	}
	return email, true
}
