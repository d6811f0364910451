package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentstore/storefront-auth/internal/models"
)

// Provider messages that are rephrased before reaching the user
var providerMessages = map[string]string{
	"email not confirmed":       "Please confirm your email address before signing in.",
	"user already registered":   "An account with this email already exists.",
	"email rate limit exceeded": "Too many emails sent. Please wait a few minutes and try again.",
	"signups not allowed":       "New registrations are currently closed.",
}

// UserMessage converts a session error into text suitable for display
func UserMessage(err error) string {
	var lockErr *models.LockoutError
	if errors.As(err, &lockErr) {
		return fmt.Sprintf("Too many failed login attempts. Please try again in %s.", plural(lockErr.RemainingMinutes(), "minute"))
	}

	var credErr *models.CredentialsError
	if errors.As(err, &credErr) {
		if credErr.AttemptsRemaining > 0 {
			return fmt.Sprintf("Invalid email or password. %s remaining before temporary lockout.", plural(credErr.AttemptsRemaining, "attempt"))
		}
		return "Invalid email or password."
	}

	switch {
	case errors.Is(err, models.ErrWeakPassword):
		return "Password does not meet the security requirements."
	case errors.Is(err, models.ErrInvalidInput):
		return "Please enter a valid email address and password."
	}

	var perr *models.ProviderError
	if errors.As(err, &perr) {
		lower := strings.ToLower(perr.Message)
		for substr, msg := range providerMessages {
			if strings.Contains(lower, substr) {
				return msg
			}
		}
		if perr.StatusCode > 0 && perr.StatusCode < 500 && perr.Message != "" {
			return perr.Message
		}
		return "The authentication service is unavailable. Please try again later."
	}

	return "Something went wrong. Please try again."
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
