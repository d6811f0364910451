package middleware

import (
	"log/slog"
	"net/http"

	"github.com/agentstore/storefront-auth/internal/auth"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
)

// CSRFHeader carries the double-submit copy of the CSRF cookie
const CSRFHeader = "X-CSRF-Token"

// CSRFProtection enforces the double-submit cookie check on state-changing
// requests that are authenticated by cookie. Requests carrying a bearer token
// are not exposed to CSRF and pass through. cookieName is the namespaced CSRF
// cookie.
func CSRFProtection(cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) || !auth.AuthenticatedByCookie(r) {
				next.ServeHTTP(w, r)
				return
			}

			var cookieValue string
			if c, err := r.Cookie(cookieName); err == nil {
				cookieValue = c.Value
			}

			if !auth.CSRFTokensMatch(r.Header.Get(CSRFHeader), cookieValue) {
				attrs := []any{slog.String("method", r.Method), slog.String("path", r.URL.Path)}
				if claims := auth.GetUserFromContext(r); claims != nil {
					attrs = append(attrs, slog.String("user_id", claims.UserID()))
				}
				logger.Warn("CSRF token validation failed", attrs...)
				pkghttp.WriteError(w, http.StatusForbidden, "csrf_invalid", "CSRF token missing or invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
