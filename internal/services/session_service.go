package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentstore/storefront-auth/internal/metrics"
	"github.com/agentstore/storefront-auth/internal/models"
	pkgauth "github.com/agentstore/storefront-auth/pkg/auth"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
	"github.com/agentstore/storefront-auth/pkg/sanitize"
)

// Storage keys written under the auth namespace
const (
	AccessTokenKey  = "auth-token"
	RefreshTokenKey = "refresh-token"
)

// AuthProvider is the external authentication backend
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// LocalStore holds the client-side auth state for one caller (cookies, in practice)
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Keys() []string
	Remove(key string)
}

type SessionConfig struct {
	Namespace             string
	ResetRedirectURL      string
	EnforcePolicyOnSignIn bool
}

// SessionService orchestrates validation and lockout around the auth provider
type SessionService struct {
	provider    AuthProvider
	tracker     *AttemptTracker
	config      SessionConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewSessionService creates a new SessionService
func NewSessionService(provider AuthProvider, tracker *AttemptTracker, config SessionConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *SessionService {
	if config.Namespace == "" {
		config.Namespace = "sb-"
	}
	return &SessionService{
		provider:    provider,
		tracker:     tracker,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Key returns the namespaced storage key for name
func (s *SessionService) Key(name string) string {
	return s.config.Namespace + name
}

// SignIn authenticates email/password against the provider and stores the
// resulting tokens in store.
func (s *SessionService) SignIn(ctx context.Context, store LocalStore, email, password string) (*models.Session, error) {
	email, ok := pkgauth.CleanEmail(email)
	if !ok {
		metrics.RecordSignIn(metrics.OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}
	if password == "" {
		metrics.RecordSignIn(metrics.OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: password is required", models.ErrInvalidInput)
	}

	if s.config.EnforcePolicyOnSignIn {
		if err := pkgauth.ValidatePassword(password).Err(); err != nil {
			metrics.RecordSignIn(metrics.OutcomeInvalidInput)
			return nil, fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
		}
	}

	if err := s.tracker.CheckLocked(ctx, email); err != nil {
		metrics.RecordSignIn(metrics.OutcomeLocked)
		s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			Email:         email,
			FailureReason: "account_locked",
		})
		return nil, err
	}

	session, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, s.handleSignInFailure(ctx, email, err)
	}

	if err := s.tracker.ResetOnSuccess(ctx, email); err != nil {
		pkglogger.LogError(s.logger, "failed to reset login attempts", err, pkglogger.EmailAttr(email))
	}

	store.Set(s.Key(AccessTokenKey), session.AccessToken)
	if session.RefreshToken != "" {
		store.Set(s.Key(RefreshTokenKey), session.RefreshToken)
	}

	metrics.RecordSignIn(metrics.OutcomeSuccess)
	event := pkglogger.AuditEvent{EventType: pkglogger.EventLoginSuccess, Email: email, Success: true}
	if session.User != nil {
		event.UserID = session.User.ID
	}
	s.auditLogger.LogAuthEvent(ctx, event)

	return session, nil
}

func (s *SessionService) handleSignInFailure(ctx context.Context, email string, err error) error {
	var perr *models.ProviderError
	if !errors.As(err, &perr) || !perr.IsInvalidCredentials() {
		metrics.RecordSignIn(metrics.OutcomeProviderError)
		s.logger.Warn("auth provider sign-in failed", pkglogger.EmailAttr(email), slog.Any("error", err))
		return err
	}

	metrics.RecordSignIn(metrics.OutcomeInvalidCredentials)
	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventLoginFailed,
		Email:         email,
		FailureReason: "invalid_credentials",
	})

	count, recErr := s.tracker.RecordFailedAttempt(ctx, email)
	if recErr != nil {
		if errors.Is(recErr, models.ErrAccountLocked) {
			return recErr
		}
		pkglogger.LogError(s.logger, "failed to record login attempt", recErr, pkglogger.EmailAttr(email))
		return &models.CredentialsError{AttemptsRemaining: -1}
	}
	return &models.CredentialsError{AttemptsRemaining: AttemptsRemaining(count)}
}

// SignUp registers a new account after enforcing the full password policy
func (s *SessionService) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error) {
	email, ok := pkgauth.CleanEmail(email)
	if !ok {
		return nil, fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}

	if err := pkgauth.ValidatePassword(password).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrWeakPassword, err)
	}

	user, err := s.provider.SignUp(ctx, email, password, sanitize.Fields(metadata))
	if err != nil {
		s.logger.Warn("auth provider sign-up failed", pkglogger.EmailAttr(email), slog.Any("error", err))
		return nil, err
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventSignUp,
		Email:     email,
		UserID:    user.ID,
		Success:   true,
	})
	return user, nil
}

// SignOut revokes the stored session with the provider. Every namespaced key in
// store is removed whether or not the provider call succeeds.
func (s *SessionService) SignOut(ctx context.Context, store LocalStore) error {
	defer s.purge(store)

	token, ok := store.Get(s.Key(AccessTokenKey))
	if !ok || token == "" {
		return nil
	}

	if err := s.provider.SignOut(ctx, token); err != nil {
		s.logger.Warn("auth provider sign-out failed", slog.Any("error", err))
		return err
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventSignOut, Success: true})
	return nil
}

func (s *SessionService) purge(store LocalStore) {
	for _, key := range store.Keys() {
		if strings.HasPrefix(key, s.config.Namespace) {
			store.Remove(key)
		}
	}
}

// ResetPassword asks the provider to send a recovery link to email
func (s *SessionService) ResetPassword(ctx context.Context, email string) error {
	email, ok := pkgauth.CleanEmail(email)
	if !ok {
		return fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}

	if err := s.provider.ResetPasswordForEmail(ctx, email, s.config.ResetRedirectURL); err != nil {
		s.logger.Warn("auth provider password reset failed", pkglogger.EmailAttr(email), slog.Any("error", err))
		return err
	}

	s.auditLogger.LogAuthEvent(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		Email:     email,
		Success:   true,
	})
	return nil
}
