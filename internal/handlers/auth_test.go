package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/handlers"
	"github.com/agentstore/storefront-auth/internal/models"
	"github.com/agentstore/storefront-auth/internal/services"
	pkgauth "github.com/agentstore/storefront-auth/pkg/auth"
)

func newAuthHandler(svc handlers.SessionServiceInterface) *handlers.AuthHandler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return handlers.NewAuthHandler(svc, auth.CookieConfig{SameSite: "lax"}, nil, logger)
}

func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}

func TestSignIn_Success(t *testing.T) {
	svc := &handlers.MockSessionService{
		SignInFunc: func(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error) {
			store.Set("sb-auth-token", "access-123")
			return &models.Session{
				AccessToken: "access-123",
				ExpiresAt:   1760000000,
				User:        &models.ProviderUser{ID: "user-1", Email: email},
			}, nil
		},
	}

	w := httptest.NewRecorder()
	newAuthHandler(svc).SignIn(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/signin", handlers.SignInRequest{
		Email:    "user@example.com",
		Password: "correct horse",
	}))

	var resp handlers.SignInResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, int64(1760000000), resp.ExpiresAt)
	assert.Len(t, resp.CSRFToken, 64)

	cookies := responseCookies(w)
	require.Contains(t, cookies, "sb-auth-token")
	assert.True(t, cookies["sb-auth-token"].HttpOnly)
	require.Contains(t, cookies, "sb-csrf-token")
	assert.False(t, cookies["sb-csrf-token"].HttpOnly)
	assert.Equal(t, resp.CSRFToken, cookies["sb-csrf-token"].Value)
	assert.NotContains(t, w.Body.String(), "access-123")
}

func TestSignIn_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", models.ErrInvalidInput, http.StatusBadRequest, "bad_request"},
		{"weak password", models.ErrWeakPassword, http.StatusBadRequest, "weak_password"},
		{"invalid credentials", &models.CredentialsError{AttemptsRemaining: 2}, http.StatusUnauthorized, "invalid_credentials"},
		{"locked", &models.LockoutError{Remaining: 5 * time.Minute, Attempts: 3}, http.StatusTooManyRequests, "account_locked"},
		{"provider rate limit", &models.ProviderError{StatusCode: 429, Message: "rate limited"}, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"provider rejected", &models.ProviderError{StatusCode: 400, Message: "Email not confirmed"}, http.StatusBadRequest, "provider_rejected"},
		{"provider down", &models.ProviderError{StatusCode: 503, Message: "unavailable"}, http.StatusBadGateway, "provider_error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockSessionService{
				SignInFunc: func(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error) {
					return nil, tt.err
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(svc).SignIn(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/signin", handlers.SignInRequest{
				Email:    "user@example.com",
				Password: "whatever",
			}))

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.NotContains(t, responseCookies(w), "sb-csrf-token")
		})
	}
}

func TestSignIn_LockedSetsRetryAfter(t *testing.T) {
	svc := &handlers.MockSessionService{
		SignInFunc: func(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error) {
			return nil, &models.LockoutError{Remaining: 4*time.Minute + 30*time.Second, Attempts: 3}
		},
	}

	w := httptest.NewRecorder()
	newAuthHandler(svc).SignIn(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/signin", handlers.SignInRequest{
		Email:    "user@example.com",
		Password: "whatever",
	}))

	resp := handlers.AssertErrorResponse(t, w, http.StatusTooManyRequests, "account_locked")
	assert.Equal(t, "270", w.Header().Get("Retry-After"))
	assert.Contains(t, resp.Message, "5 minutes")
}

func TestSignIn_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing password", map[string]string{"email": "user@example.com"}},
		{"missing email", map[string]string{"password": "secret"}},
		{"not an object", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &handlers.MockSessionService{
				SignInFunc: func(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error) {
					called = true
					return nil, nil
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(svc).SignIn(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/signin", tt.body))

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
			assert.False(t, called)
		})
	}
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusAccepted, ""},
		{"already registered is indistinguishable", &models.ProviderError{StatusCode: 422, Code: "user_already_exists", Message: "User already registered"}, http.StatusAccepted, ""},
		{"weak password", fmt.Errorf("%w: %w", models.ErrWeakPassword, &pkgauth.PasswordValidationError{Errors: []string{"must contain a digit"}}), http.StatusBadRequest, "weak_password"},
		{"invalid email", models.ErrInvalidInput, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMetadata map[string]string
			svc := &handlers.MockSessionService{
				SignUpFunc: func(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error) {
					gotMetadata = metadata
					if tt.err != nil {
						return nil, tt.err
					}
					return &models.ProviderUser{ID: "user-1"}, nil
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(svc).SignUp(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/signup", handlers.SignUpRequest{
				Email:    "new@example.com",
				Password: "Tr0ub4dor&3xyz!",
				Metadata: map[string]string{"display_name": "Ada"},
			}))

			if tt.wantCode == "" {
				var resp handlers.MessageResponse
				handlers.AssertJSONResponse(t, w, tt.wantStatus, &resp)
				assert.NotEmpty(t, resp.Message)
				assert.Equal(t, "Ada", gotMetadata["display_name"])
				return
			}
			resp := handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			if tt.wantCode == "weak_password" {
				assert.Equal(t, []string{"must contain a digit"}, resp.Details)
			}
		})
	}
}

func TestSignOut_AlwaysNoContent(t *testing.T) {
	for _, providerErr := range []error{nil, &models.ProviderError{StatusCode: 500, Message: "down"}} {
		svc := &handlers.MockSessionService{
			SignOutFunc: func(ctx context.Context, store services.LocalStore) error {
				store.Remove("sb-auth-token")
				return providerErr
			},
		}

		req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
		req.AddCookie(&http.Cookie{Name: "sb-auth-token", Value: "access-123"})
		w := httptest.NewRecorder()
		newAuthHandler(svc).SignOut(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		cookies := responseCookies(w)
		require.Contains(t, cookies, "sb-auth-token")
		assert.Equal(t, -1, cookies["sb-auth-token"].MaxAge)
	}
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusAccepted},
		{"unknown account is hidden", &models.ProviderError{StatusCode: 404, Message: "User not found"}, http.StatusAccepted},
		{"provider down is hidden", &models.ProviderError{StatusCode: 503, Message: "unavailable"}, http.StatusAccepted},
		{"invalid email", models.ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", &models.ProviderError{StatusCode: 429, Message: "email rate limit exceeded"}, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockSessionService{
				ResetPasswordFunc: func(ctx context.Context, email string) error {
					return tt.err
				},
			}

			w := httptest.NewRecorder()
			newAuthHandler(svc).ResetPassword(w, handlers.NewTestRequest(t, http.MethodPost, "/auth/reset-password", handlers.ResetPasswordRequest{
				Email: "user@example.com",
			}))

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSession(t *testing.T) {
	h := newAuthHandler(&handlers.MockSessionService{})

	t.Run("authenticated", func(t *testing.T) {
		req := handlers.WithAuthContext(httptest.NewRequest(http.MethodGet, "/auth/session", nil), "user-1", "user@example.com")
		w := httptest.NewRecorder()
		h.Session(w, req)

		var resp handlers.SessionResponse
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "user-1", resp.UserID)
		assert.Equal(t, "user@example.com", resp.Email)
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Session(w, httptest.NewRequest(http.MethodGet, "/auth/session", nil))
		handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	})
}
