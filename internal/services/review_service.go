package services

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentstore/storefront-auth/internal/models"
	"github.com/agentstore/storefront-auth/pkg/sanitize"
)

const (
	MaxReviewCommentLen = 2000
	MaxAuthorNameLen    = 100
	DefaultReviewLimit  = 20
	MaxReviewLimit      = 100
)

// ReviewRepository defines the interface for review persistence
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) (*models.Review, error)
	ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error)
}

// ReviewService handles app review business logic
type ReviewService struct {
	repo   ReviewRepository
	logger *slog.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(repo ReviewRepository, logger *slog.Logger) *ReviewService {
	return &ReviewService{repo: repo, logger: logger}
}

// Create stores a review by userID. Free text is sanitized before it is persisted.
func (s *ReviewService) Create(ctx context.Context, userID, appID string, rating int, authorName, comment string) (*models.Review, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", models.ErrInvalidInput)
	}

	appID = sanitize.Sanitize(appID)
	authorName = sanitize.Sanitize(authorName)
	comment = sanitize.Sanitize(comment)

	switch {
	case appID == "":
		return nil, fmt.Errorf("%w: app id is required", models.ErrInvalidInput)
	case authorName == "" || utf8.RuneCountInString(authorName) > MaxAuthorNameLen:
		return nil, fmt.Errorf("%w: author name must be 1-%d characters", models.ErrInvalidInput, MaxAuthorNameLen)
	case comment == "" || utf8.RuneCountInString(comment) > MaxReviewCommentLen:
		return nil, fmt.Errorf("%w: comment must be 1-%d characters", models.ErrInvalidInput, MaxReviewCommentLen)
	}

	review, err := s.repo.Create(ctx, &models.Review{
		ID:         uuid.NewString(),
		AppID:      appID,
		UserID:     userID,
		AuthorName: authorName,
		Rating:     rating,
		Comment:    comment,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review created",
		slog.String("review_id", review.ID),
		slog.String("app_id", appID),
		slog.String("user_id", userID))
	return review, nil
}

// List returns a page of reviews for appID, newest first
func (s *ReviewService) List(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error) {
	appID = sanitize.Sanitize(appID)
	if appID == "" {
		return nil, fmt.Errorf("%w: app id is required", models.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	if limit > MaxReviewLimit {
		limit = MaxReviewLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByApp(ctx, appID, limit, offset)
}
