package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/handlers"
	"github.com/agentstore/storefront-auth/internal/middleware"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies are the handlers and settings the router is built from
type Dependencies struct {
	AuthHandler   *handlers.AuthHandler
	ReviewHandler *handlers.ReviewHandler
	Verifier      *auth.TokenVerifier
	// Namespace prefixes the session and CSRF cookie names
	Namespace      string
	RateLimit      middleware.RateLimitConfig
	Health         HealthChecker
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	authLimit := middleware.RateLimitByIP(deps.RateLimit)
	requireAuth := auth.AuthMiddleware(deps.Verifier, deps.Namespace+"auth-token")
	cookieSession := auth.CookieSession(deps.Namespace + "auth-token")
	signOutLimit := middleware.RateLimitByIP(deps.RateLimit)
	csrf := middleware.CSRFProtection(deps.Namespace+auth.CSRFCookieName, deps.Logger)

	router.Get("/health", healthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Public routes - credential endpoints are throttled per client IP
	router.Route("/auth", func(r chi.Router) {
		r.With(authLimit).Post("/signin", deps.AuthHandler.SignIn)
		r.With(authLimit).Post("/signup", deps.AuthHandler.SignUp)
		r.With(authLimit).Post("/reset-password", deps.AuthHandler.ResetPassword)

		// Sign-out must clear cookies even for an expired session, so the token
		// is not verified, but a cookie session still needs the CSRF header.
		r.With(signOutLimit, cookieSession, csrf).Post("/signout", deps.AuthHandler.SignOut)

		r.With(requireAuth).Get("/session", deps.AuthHandler.Session)
	})

	router.Route("/apps/{appID}/reviews", func(r chi.Router) {
		r.Get("/", deps.ReviewHandler.List)
		r.With(requireAuth, csrf, middleware.RateLimitByUser(deps.RateLimit)).Post("/", deps.ReviewHandler.Create)
	})
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
