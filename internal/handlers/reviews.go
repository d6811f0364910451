package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/agentstore/storefront-auth/internal/auth"
	"github.com/agentstore/storefront-auth/internal/models"
	pkghttp "github.com/agentstore/storefront-auth/pkg/http"
	pkglogger "github.com/agentstore/storefront-auth/pkg/logger"
)

// ReviewServiceInterface defines the interface for review business logic
type ReviewServiceInterface interface {
	Create(ctx context.Context, userID, appID string, rating int, authorName, comment string) (*models.Review, error)
	List(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error)
}

// ReviewHandler handles app review requests
type ReviewHandler struct {
	service ReviewServiceInterface
	logger  *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(service ReviewServiceInterface, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: service, logger: logger}
}

// CreateReviewRequest represents the request body for posting a review
type CreateReviewRequest struct {
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	AuthorName string `json:"author_name" validate:"required,max=100"`
	Comment    string `json:"comment" validate:"required,max=2000"`
}

// ListReviewsResponse is a page of reviews
type ListReviewsResponse struct {
	Reviews []*models.Review `json:"reviews"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// Create posts a review for the app in the URL as the authenticated user
// @Router /apps/{appID}/reviews [post]
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	review, err := h.service.Create(r.Context(), claims.UserID(), chi.URLParam(r, "appID"), req.Rating, req.AuthorName, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "You have already reviewed this app")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Unauthorized")
		default:
			pkglogger.LogError(h.logger, "failed to create review", err)
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, review)
}

// List returns reviews for the app in the URL, newest first
// @Router /apps/{appID}/reviews [get]
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		pkghttp.WriteBadRequest(w, "limit must be a number")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		pkghttp.WriteBadRequest(w, "offset must be a number")
		return
	}

	reviews, err := h.service.List(r.Context(), chi.URLParam(r, "appID"), limit, offset)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		pkglogger.LogError(h.logger, "failed to list reviews", err)
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if reviews == nil {
		reviews = []*models.Review{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListReviewsResponse{Reviews: reviews, Limit: limit, Offset: offset})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
