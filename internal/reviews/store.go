package reviews

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
)

type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	FindSupplier(ctx context.Context, id primitive.ObjectID) (models.Supplier, error)
	FindReview(ctx context.Context, id primitive.ObjectID) (models.Review, error)
	FindUserReview(ctx context.Context, userID, supplierID primitive.ObjectID) (models.Review, error)
	// InsertReview returns models.ErrDuplicate when the user already
	// reviewed the supplier.
	InsertReview(ctx context.Context, review *models.Review) error
	UpdateReview(ctx context.Context, id primitive.ObjectID, rating int, comment string, updatedAt time.Time) (models.Review, error)
	DeleteReview(ctx context.Context, id primitive.ObjectID) error
	IncrementHelpful(ctx context.Context, id primitive.ObjectID) (models.Review, error)

	// RatingSummary returns the unrounded average and count of a
	// supplier's reviews.
	RatingSummary(ctx context.Context, supplierID primitive.ObjectID) (models.RatingSummary, error)
	SetSupplierRating(ctx context.Context, supplierID primitive.ObjectID, rating float64, count int) error
	RatingDistribution(ctx context.Context, supplierID primitive.ObjectID) ([]RatingBucket, error)
	ListReviews(ctx context.Context, filter Filter) ([]models.Review, int64, error)

	HasDeliveredOrder(ctx context.Context, userID, supplierID primitive.ObjectID) (bool, error)
}

type Filter struct {
	Supplier *primitive.ObjectID
	User     *primitive.ObjectID
	Rating   int
	Page     int
	Limit    int
}

func (f Filter) Skip() int64 {
	if f.Page < 1 {
		return 0
	}
	return int64((f.Page - 1) * f.Limit)
}

// RatingBucket counts reviews with one star value.
type RatingBucket struct {
	Rating int `json:"rating" bson:"_id"`
	Count  int `json:"count" bson:"count"`
}
