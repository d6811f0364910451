package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is a transient email/password pair. Never persisted.
type Credentials struct {
	Email    string
	Password string
}

// ProviderUser is the user object returned by the auth provider
type ProviderUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is a provider-issued token pair for a signed-in user
type Session struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at,omitempty"`
	User         *ProviderUser `json:"user"`
}

// TokenClaims are the claims carried by provider access tokens
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the provider user id (the sub claim)
func (c *TokenClaims) UserID() string {
	return c.Subject
}
