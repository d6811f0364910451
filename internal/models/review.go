package models

import "time"

// Review is a user rating of a catalog app, stored in app_reviews
type Review struct {
	ID         string    `db:"id" json:"id"`
	AppID      string    `db:"app_id" json:"app_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    string    `db:"comment" json:"comment"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
