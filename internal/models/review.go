package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 500
)

// Review is one user's rating of a supplier. A user has at most one review
// per supplier.
type Review struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User         primitive.ObjectID `bson:"user" json:"user"`
	Supplier     primitive.ObjectID `bson:"supplier" json:"supplier"`
	Rating       int                `bson:"rating" json:"rating"`
	Comment      string             `bson:"comment" json:"comment"`
	IsVerified   bool               `bson:"isVerified" json:"isVerified"`
	HelpfulCount int                `bson:"helpfulCount" json:"helpfulCount"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RatingSummary is the aggregate of all reviews for one supplier.
type RatingSummary struct {
	Average float64 `json:"averageRating"`
	Count   int     `json:"totalReviews"`
}
