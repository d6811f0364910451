package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentstore/storefront-auth/internal/models"
)

// ProviderAudience is the aud claim the provider puts on user access tokens
const ProviderAudience = "authenticated"

// TokenVerifier validates access tokens issued by the auth provider
type TokenVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewTokenVerifier creates a verifier for tokens signed with the provider's JWT secret
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), leeway: 30 * time.Second}
}

// Verify parses tokenString and returns its claims
func (v *TokenVerifier) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithAudience(ProviderAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}

	return claims, nil
}
