package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/models"
	"github.com/agentstore/storefront-auth/internal/services"
	pkgauth "github.com/agentstore/storefront-auth/pkg/auth"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

const (
	signUpReceivedMessage = "Registration received. If the email is not already registered, you will receive a confirmation email."
	resetReceivedMessage  = "If an account exists for this email, a password reset link has been sent."
)

// SessionServiceInterface defines the interface for the session façade
type SessionServiceInterface interface {
	SignIn(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error)
	SignOut(ctx context.Context, store services.LocalStore) error
	ResetPassword(ctx context.Context, email string) error
	Key(name string) string
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service SessionServiceInterface
	cookies auth.CookieConfig
	timing  *auth.TimingDelay
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. timing may be nil.
func NewAuthHandler(service SessionServiceInterface, cookies auth.CookieConfig, timing *auth.TimingDelay, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
		timing:  timing,
		logger:  logger,
	}
}

// Request DTOs

// SignInRequest represents the request body for sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// SignUpRequest represents the request body for sign-up
type SignUpRequest struct {
	Email    string            `json:"email" validate:"required,max=254"`
	Password string            `json:"password" validate:"required,max=1024"`
	Metadata map[string]string `json:"metadata" validate:"omitempty,max=20,dive,keys,max=64,endkeys,max=500"`
}

// ResetPasswordRequest represents the request body for a password reset
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

// SignInResponse is returned on successful sign-in. Tokens travel in cookies only.
type SignInResponse struct {
	User      *models.ProviderUser `json:"user"`
	ExpiresAt int64                `json:"expires_at,omitempty"`
	CSRFToken string               `json:"csrf_token"`
}

// SessionResponse describes the caller's verified token
type SessionResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// MessageResponse carries a user-facing message
type MessageResponse struct {
	Message string `json:"message"`
}

// SignIn handles email/password sign-in
// @Summary Sign in
// @Accept json
// @Param request body SignInRequest true "Sign-in request"
// @Produce json
// @Success 200 {object} SignInResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 502 {object} pkghttp.ErrorResponse
// @Router /auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	start := time.Now()
	store := auth.NewCookieStore(w, r, h.cookies)
	session, err := h.service.SignIn(r.Context(), store, req.Email, req.Password)

	if h.timing != nil {
		h.timing.WaitFrom(r.Context(), start, err == nil)
	}

	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	csrfToken, err := auth.GenerateCSRFToken()
	if err != nil {
		pkglogger.LogError(h.logger, "failed to generate CSRF token", err)
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	store.SetReadable(h.service.Key(auth.CSRFCookieName), csrfToken)

	pkghttp.WriteJSON(w, http.StatusOK, SignInResponse{
		User:      session.User,
		ExpiresAt: session.ExpiresAt,
		CSRFToken: csrfToken,
	})
}

// SignUp handles account registration. The response does not reveal whether
// the email was already registered.
// @Router /auth/signup [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.Metadata)
	if err != nil && !isAlreadyRegistered(err) {
		h.writeSessionError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: signUpReceivedMessage})
}

// SignOut ends the session. Auth cookies are cleared even when the provider
// call fails, so the response is always 204.
// @Router /auth/signout [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	store := auth.NewCookieStore(w, r, h.cookies)
	if err := h.service.SignOut(r.Context(), store); err != nil {
		h.logger.Warn("sign-out completed with provider error", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword requests a recovery email
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email); err != nil {
		var perr *models.ProviderError
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			pkghttp.WriteBadRequest(w, services.UserMessage(err))
			return
		case errors.As(err, &perr) && perr.StatusCode == http.StatusTooManyRequests:
			pkghttp.WriteTooManyRequests(w, services.UserMessage(err))
			return
		}
		// Other failures are hidden from the caller to avoid account enumeration.
		h.logger.Warn("password reset request failed", slog.Any("error", err))
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, MessageResponse{Message: resetReceivedMessage})
}

// Session returns the claims of the verified caller
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp := SessionResponse{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Unix()
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// writeSessionError maps façade errors to HTTP responses
func (h *AuthHandler) writeSessionError(w http.ResponseWriter, err error) {
	message := services.UserMessage(err)

	var lockErr *models.LockoutError
	if errors.As(err, &lockErr) {
		pkghttp.WriteAccountLocked(w, int(math.Ceil(lockErr.Remaining.Seconds())), message)
		return
	}

	var credErr *models.CredentialsError
	if errors.As(err, &credErr) {
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", message)
		return
	}

	if errors.Is(err, models.ErrWeakPassword) {
		var details []string
		var pwErr *pkgauth.PasswordValidationError
		if errors.As(err, &pwErr) {
			details = pwErr.Errors
		}
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password", message, details)
		return
	}

	if errors.Is(err, models.ErrInvalidInput) {
		pkghttp.WriteBadRequest(w, message)
		return
	}

	var perr *models.ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.StatusCode == http.StatusTooManyRequests:
			pkghttp.WriteTooManyRequests(w, message)
		case perr.StatusCode >= 400 && perr.StatusCode < 500:
			pkghttp.WriteError(w, http.StatusBadRequest, "provider_rejected", message)
		default:
			pkglogger.LogError(h.logger, "auth provider unavailable", err)
			pkghttp.WriteBadGateway(w, message)
		}
		return
	}

	pkglogger.LogError(h.logger, "session request failed", err)
	pkghttp.WriteInternalError(w, "Internal server error")
}

func isAlreadyRegistered(err error) bool {
	var perr *models.ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return strings.Contains(strings.ToLower(perr.Message), "already registered") ||
		perr.Code == "user_already_exists"
}
