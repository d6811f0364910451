package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/models"
	"github.com/agentstore/storefront-auth/internal/services"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds verified claims to the request, as AuthMiddleware does
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	claims := &models.TokenClaims{Email: email}
	claims.Subject = userID
	return auth.WithUser(req, claims, false)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockSessionService implements SessionServiceInterface for testing
type MockSessionService struct {
	SignInFunc        func(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error)
	SignUpFunc        func(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error)
	SignOutFunc       func(ctx context.Context, store services.LocalStore) error
	ResetPasswordFunc func(ctx context.Context, email string) error
}

func (m *MockSessionService) SignIn(ctx context.Context, store services.LocalStore, email, password string) (*models.Session, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, store, email, password)
	}
	return nil, nil
}

func (m *MockSessionService) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error) {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, email, password, metadata)
	}
	return &models.ProviderUser{}, nil
}

func (m *MockSessionService) SignOut(ctx context.Context, store services.LocalStore) error {
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, store)
	}
	return nil
}

func (m *MockSessionService) ResetPassword(ctx context.Context, email string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockSessionService) Key(name string) string {
	return "sb-" + name
}

// MockReviewService implements ReviewServiceInterface for testing
type MockReviewService struct {
	CreateFunc func(ctx context.Context, userID, appID string, rating int, authorName, comment string) (*models.Review, error)
	ListFunc   func(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error)
}

func (m *MockReviewService) Create(ctx context.Context, userID, appID string, rating int, authorName, comment string) (*models.Review, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, appID, rating, authorName, comment)
	}
	return nil, nil
}

func (m *MockReviewService) List(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, appID, limit, offset)
	}
	return nil, nil
}
