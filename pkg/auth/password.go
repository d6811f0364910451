package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinPasswordLen = 12
	MaxPasswordLen = 128
)

// Score weights. The score is advisory; IsValid is decided by the error list.
const (
	scoreLength     = 2
	scoreUpper      = 1
	scoreLower      = 1
	scoreDigit      = 1
	scoreSpecial    = 2
	scoreNoRepeat   = 1
	scoreNoWeak     = 2
	scoreNoSequence = 1

	MaxSecurityScore = scoreLength + scoreUpper + scoreLower + scoreDigit + scoreSpecial +
		scoreNoRepeat + scoreNoWeak + scoreNoSequence
)

const specialChars = `!@#$%^&*(),.?":{}|<>_-+=[]\/;'~` + "`"

// Substrings that make a password trivially guessable (case-insensitive)
var weakPatterns = []string{
	"password",
	"123456",
	"qwerty",
	"admin",
	"login",
	"welcome",
	"abc123",
}

// Ascending runs rejected by the sequence rule: every numeric run and every
// alphabetic run except the one ending in "z".
var sequentialRuns = buildSequentialRuns()

func buildSequentialRuns() []string {
	runs := make([]string, 0, 8+23)
	for c := '0'; c <= '7'; c++ {
		runs = append(runs, string([]rune{c, c + 1, c + 2}))
	}
	for c := 'a'; c+2 < 'z'; c++ {
		runs = append(runs, string([]rune{c, c + 1, c + 2}))
	}
	return runs
}

// ValidationResult is the outcome of a password policy check
type ValidationResult struct {
	IsValid       bool     `json:"is_valid"`
	Errors        []string `json:"errors"`
	SecurityScore int      `json:"security_score"`
}

// PasswordValidationError wraps the unmet rules of a rejected password
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "password " + strings.Join(e.Errors, "; ")
}

// Err converts a result into a *PasswordValidationError, or nil when valid
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &PasswordValidationError{Errors: r.Errors}
}

// ValidatePassword scores raw against the password policy.
func ValidatePassword(raw string) ValidationResult {
	errs := make([]string, 0)
	score := 0

	length := len([]rune(raw))
	if length >= MinPasswordLen {
		score += scoreLength
	} else {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if length > MaxPasswordLen {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range raw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}

	if hasUpper {
		score += scoreUpper
	} else {
		errs = append(errs, "must contain at least one uppercase letter")
	}
	if hasLower {
		score += scoreLower
	} else {
		errs = append(errs, "must contain at least one lowercase letter")
	}
	if hasDigit {
		score += scoreDigit
	} else {
		errs = append(errs, "must contain at least one digit")
	}
	if hasSpecial {
		score += scoreSpecial
	} else {
		errs = append(errs, "must contain at least one special character")
	}

	if !hasTripleRepeat(raw) {
		score += scoreNoRepeat
	} else {
		errs = append(errs, "must not repeat the same character three times in a row")
	}

	lower := strings.ToLower(raw)
	if !containsAny(lower, weakPatterns) {
		score += scoreNoWeak
	} else {
		errs = append(errs, "must not contain common words or patterns")
	}

	if !containsAny(lower, sequentialRuns) {
		score += scoreNoSequence
	} else {
		errs = append(errs, "must not contain sequential characters")
	}

	return ValidationResult{
		IsValid:       len(errs) == 0,
		Errors:        errs,
		SecurityScore: score,
	}
}

func hasTripleRepeat(s string) bool {
	runes := []rune(s)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i] == runes[i-2] {
			return true
		}
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
