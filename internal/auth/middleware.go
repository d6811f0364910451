package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/agentstore/storefront-auth/internal/models"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
	// cookieAuthContextKey marks requests authenticated by cookie rather than header
	cookieAuthContextKey contextKey = "cookie_auth"
)

// AuthMiddleware accepts a provider access token from the Authorization header
// or, failing that, from the session cookie named cookieName.
func AuthMiddleware(verifier *TokenVerifier, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, fromCookie, ok := extractToken(r, cookieName)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed credentials")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			ctx = context.WithValue(ctx, cookieAuthContextKey, fromCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CookieSession marks requests that carry the session cookie as cookie
// authenticated without verifying the token, so routes that must also serve
// expired sessions still get CSRF checks.
func CookieSession(cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
				r = r.WithContext(context.WithValue(r.Context(), cookieAuthContextKey, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request, cookieName string) (token string, fromCookie bool, ok bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false, false
		}
		return parts[1], false, true
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false, false
	}
	return cookie.Value, true, true
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// AuthenticatedByCookie reports whether the request's credentials came from a cookie
func AuthenticatedByCookie(r *http.Request) bool {
	fromCookie, _ := r.Context().Value(cookieAuthContextKey).(bool)
	return fromCookie
}

// WithUser returns a copy of r carrying claims, as AuthMiddleware would set them
func WithUser(r *http.Request, claims *models.TokenClaims, fromCookie bool) *http.Request {
	ctx := context.WithValue(r.Context(), UserContextKey, claims)
	ctx = context.WithValue(ctx, cookieAuthContextKey, fromCookie)
	return r.WithContext(ctx)
}
