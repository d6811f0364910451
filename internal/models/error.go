package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential and lockout errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrProvider           = errors.New("auth provider error")
)

// LockoutError reports an active lockout and how long it has left to run.
type LockoutError struct {
	Remaining time.Duration
	Attempts  int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account is temporarily locked, try again in %d minutes", e.RemainingMinutes())
}

func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}

// RemainingMinutes rounds the remaining lockout up to whole minutes.
func (e *LockoutError) RemainingMinutes() int {
	if e.Remaining <= 0 {
		return 0
	}
	minutes := int(e.Remaining / time.Minute)
	if e.Remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// CredentialsError is returned when the provider rejects an email/password pair.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Unwrap() error {
	return ErrInvalidCredentials
}

// ProviderError carries a failure returned by the external auth provider.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider: %s (%d %s)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("auth provider: %s (%d)", e.Message, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

// IsInvalidCredentials reports whether the provider rejected the credentials themselves,
// as opposed to failing for an unrelated reason. The legacy "invalid_grant" code also
// covers unconfirmed emails, so it only counts when the message names the credentials.
func (e *ProviderError) IsInvalidCredentials() bool {
	if e.Code == "invalid_credentials" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "invalid login credentials")
}
