// Package app assembles the service graph from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/background"
	"github.com/agentstore/storefront-auth/internal/config"
	"github.com/agentstore/storefront-auth/internal/database"
	"github.com/agentstore/storefront-auth/internal/handlers"
	"github.com/agentstore/storefront-auth/internal/metrics"
	"github.com/agentstore/storefront-auth/internal/middleware"
	"github.com/agentstore/storefront-auth/internal/provider"
	"github.com/agentstore/storefront-auth/internal/repositories"
	"github.com/agentstore/storefront-auth/internal/routes"
	"github.com/agentstore/storefront-auth/internal/services"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

// App owns every long-lived component of the service
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Tracker  *services.AttemptTracker
	Sessions *services.SessionService
	Reviews  *services.ReviewService
	Cleanup  *background.CleanupManager
	Registry *prometheus.Registry
	Router   http.Handler

	db *database.DB
}

// Stores are the persistence backends App is built on
type Stores struct {
	Attempts services.AttemptStore
	Reviews  services.ReviewRepository
	Health   routes.HealthChecker
}

// New connects to Postgres and builds the service graph. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := newNotifier(ctx, cfg.Email, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := Build(cfg, logger, Stores{
		Attempts: repositories.NewLoginAttemptRepository(db.Pool),
		Reviews:  repositories.NewReviewRepository(db.Pool),
		Health:   db,
	}, notifier, nil)
	a.db = db
	return a, nil
}

// Build wires services, handlers and the router on top of stores.
// httpClient is used for provider calls and may be nil.
func Build(cfg *config.Config, logger *slog.Logger, stores Stores, notifier services.LockoutNotifier, httpClient *http.Client) *App {
	auditLogger := pkglogger.NewAuditLogger(logger)
	registry := metrics.NewRegistry()

	tracker := services.NewAttemptTracker(stores.Attempts, notifier, logger, auditLogger)
	sessions := services.NewSessionService(
		provider.NewClient(cfg.Provider, httpClient),
		tracker,
		services.SessionConfig{
			Namespace:             cfg.Provider.StorageNamespace,
			ResetRedirectURL:      cfg.Provider.ResetRedirectURL,
			EnforcePolicyOnSignIn: cfg.Auth.EnforcePolicyOnSignIn,
		},
		logger,
		auditLogger,
	)
	reviews := services.NewReviewService(stores.Reviews, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingBaseDelay,
		RandomDelay: cfg.Auth.TimingRandomDelay,
	})
	cookies := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.SecureLogger(logger, ipConfig))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:    handlers.NewAuthHandler(sessions, cookies, timing, logger),
		ReviewHandler:  handlers.NewReviewHandler(reviews, logger),
		Verifier:       auth.NewTokenVerifier(cfg.Provider.JWTSecret),
		Namespace:      sessions.Key(""),
		RateLimit:      middleware.RateLimitConfig{RequestsPerMinute: cfg.Auth.RequestsPerMinute, IPConfig: ipConfig},
		Health:         stores.Health,
		MetricsHandler: metrics.Handler(registry),
		Logger:         logger,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Tracker:  tracker,
		Sessions: sessions,
		Reviews:  reviews,
		Cleanup:  background.NewCleanupManager(tracker, logger, cfg.Auth.CleanupInterval, cfg.Auth.AttemptRetention),
		Registry: registry,
		Router:   router,
	}
}

func newNotifier(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.LockoutNotifier, error) {
	if !cfg.Enabled {
		return services.NewLogLockoutNotifier(logger), nil
	}
	notifier, err := services.NewSESLockoutNotifier(ctx, cfg.AWSRegion, cfg.FromAddress, cfg.SupportURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lockout notifier: %w", err)
	}
	return notifier, nil
}

// Close stops the sweeper and releases the database pool
func (a *App) Close() {
	a.Cleanup.Stop()
	if a.db != nil {
		a.db.Close()
	}
}
