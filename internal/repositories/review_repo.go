package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/agentstore/storefront-auth/internal/database"
	"github.com/agentstore/storefront-auth/internal/models"
)

// ReviewRepository handles database operations for app reviews
type ReviewRepository struct {
	pool pgxPool
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(pool pgxPool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review. One review per user and app; a second one is a conflict.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO app_reviews (id, app_id, user_id, author_name, rating, comment)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		review.ID, review.AppID, review.UserID, review.AuthorName, review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		if mapped := database.MapPostgresError(err); mapped == models.ErrConflict {
			return nil, mapped
		}
		return nil, oops.Code("REVIEW_CREATE_FAILED").
			With("app_id", review.AppID).
			Wrap(err)
	}
	return review, nil
}

// ListByApp returns reviews for an app, newest first
func (r *ReviewRepository) ListByApp(ctx context.Context, appID string, limit, offset int) ([]*models.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, app_id, user_id, author_name, rating, comment, created_at
		 FROM app_reviews
		 WHERE app_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		appID, limit, offset)
	if err != nil {
		return nil, oops.Code("REVIEW_LIST_FAILED").With("app_id", appID).Wrap(err)
	}

	reviews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Review, error) {
		var rv models.Review
		err := row.Scan(&rv.ID, &rv.AppID, &rv.UserID, &rv.AuthorName, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return &rv, err
	})
	if err != nil {
		return nil, oops.Code("REVIEW_LIST_FAILED").With("app_id", appID).Wrap(err)
	}
	return reviews, nil
}
