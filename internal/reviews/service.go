// Package reviews manages supplier reviews and keeps each supplier's rating
// and review count in step with them.
package reviews

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/metrics"
	"supplyhub/internal/models"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateRequest struct {
	SupplierID primitive.ObjectID
	Rating     int
	Comment    string
}

type UpdateRequest struct {
	Rating  *int
	Comment *string
}

func validateRating(rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return apperr.Validation("Rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	return nil
}

func validateComment(comment string) error {
	if strings.TrimSpace(comment) == "" {
		return apperr.Validation("Please add a comment")
	}
	if len(comment) > models.MaxCommentLength {
		return apperr.Validation("Comment cannot be more than %d characters", models.MaxCommentLength)
	}
	return nil
}

// Create records the actor's review of a supplier and recomputes the
// supplier's rating in the same transaction.
func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (models.Review, error) {
	if err := validateRating(req.Rating); err != nil {
		return models.Review{}, err
	}
	if err := validateComment(req.Comment); err != nil {
		return models.Review{}, err
	}

	var created models.Review
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.store.FindSupplier(txCtx, req.SupplierID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return apperr.NotFound("Supplier not found")
			}
			return errors.Wrap(err, "find supplier")
		}

		_, err := s.store.FindUserReview(txCtx, actor.ID, req.SupplierID)
		switch {
		case err == nil:
			return apperr.InvalidState("You have already reviewed this supplier")
		case !errors.Is(err, models.ErrNotFound):
			return errors.Wrap(err, "find existing review")
		}

		verified, err := s.store.HasDeliveredOrder(txCtx, actor.ID, req.SupplierID)
		if err != nil {
			return errors.Wrap(err, "check purchase history")
		}

		now := s.now().UTC()
		review := models.Review{
			ID:         primitive.NewObjectID(),
			User:       actor.ID,
			Supplier:   req.SupplierID,
			Rating:     req.Rating,
			Comment:    strings.TrimSpace(req.Comment),
			IsVerified: verified,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.InsertReview(txCtx, &review); err != nil {
			if errors.Is(err, models.ErrDuplicate) {
				return apperr.InvalidState("You have already reviewed this supplier")
			}
			return errors.Wrap(err, "insert review")
		}

		created = review
		return s.recompute(txCtx, req.SupplierID)
	})
	if err != nil {
		return models.Review{}, err
	}

	log.Printf("[REVIEW] [INFO] review %s created for supplier %s", created.ID.Hex(), created.Supplier.Hex())
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor models.Actor, id primitive.ObjectID, req UpdateRequest) (models.Review, error) {
	var updated models.Review
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		review, err := s.owned(txCtx, actor, id, "update")
		if err != nil {
			return err
		}

		rating, comment := review.Rating, review.Comment
		if req.Rating != nil {
			if err := validateRating(*req.Rating); err != nil {
				return err
			}
			rating = *req.Rating
		}
		if req.Comment != nil {
			if err := validateComment(*req.Comment); err != nil {
				return err
			}
			comment = strings.TrimSpace(*req.Comment)
		}

		updated, err = s.store.UpdateReview(txCtx, id, rating, comment, s.now().UTC())
		if err != nil {
			return errors.Wrap(err, "update review")
		}
		return s.recompute(txCtx, review.Supplier)
	})
	if err != nil {
		return models.Review{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actor models.Actor, id primitive.ObjectID) error {
	return s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		review, err := s.owned(txCtx, actor, id, "delete")
		if err != nil {
			return err
		}
		if err := s.store.DeleteReview(txCtx, id); err != nil {
			return errors.Wrap(err, "delete review")
		}
		return s.recompute(txCtx, review.Supplier)
	})
}

func (s *Service) owned(ctx context.Context, actor models.Actor, id primitive.ObjectID, action string) (models.Review, error) {
	review, err := s.store.FindReview(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Review{}, apperr.NotFound("Review not found")
	}
	if err != nil {
		return models.Review{}, errors.Wrap(err, "find review")
	}
	if review.User != actor.ID {
		return models.Review{}, apperr.Forbidden("Not authorized to %s this review", action)
	}
	return review, nil
}

// recompute sets rating to the average rounded to one decimal and
// reviewCount to the number of reviews, or 0/0 when none are left.
func (s *Service) recompute(ctx context.Context, supplierID primitive.ObjectID) error {
	summary, err := s.store.RatingSummary(ctx, supplierID)
	if err != nil {
		return errors.Wrap(err, "summarize ratings")
	}

	rating := 0.0
	if summary.Count > 0 {
		rating, _ = decimal.NewFromFloat(summary.Average).Round(1).Float64()
	}

	if err := s.store.SetSupplierRating(ctx, supplierID, rating, summary.Count); err != nil {
		return errors.Wrap(err, "update supplier rating")
	}
	metrics.RatingRecomputes.Inc()
	return nil
}

func (s *Service) MarkHelpful(ctx context.Context, id primitive.ObjectID) (models.Review, error) {
	review, err := s.store.IncrementHelpful(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Review{}, apperr.NotFound("Review not found")
	}
	if err != nil {
		return models.Review{}, errors.Wrap(err, "mark review helpful")
	}
	return review, nil
}

type SupplierSummary struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Rating      float64            `json:"rating"`
	ReviewCount int                `json:"reviewCount"`
}

type Statistics struct {
	AverageRating float64        `json:"averageRating"`
	TotalReviews  int            `json:"totalReviews"`
	Distribution  []RatingBucket `json:"distribution"`
}

type SupplierReviews struct {
	Supplier   SupplierSummary `json:"supplier"`
	Statistics Statistics      `json:"statistics"`
	Reviews    []models.Review `json:"-"`
	Total      int64           `json:"-"`
}

// ListForSupplier returns a page of a supplier's reviews, optionally only one
// star value, with statistics over all of them.
func (s *Service) ListForSupplier(ctx context.Context, supplierID primitive.ObjectID, rating, page, limit int) (SupplierReviews, error) {
	if rating != 0 {
		if err := validateRating(rating); err != nil {
			return SupplierReviews{}, err
		}
	}

	supplier, err := s.store.FindSupplier(ctx, supplierID)
	if errors.Is(err, models.ErrNotFound) {
		return SupplierReviews{}, apperr.NotFound("Supplier not found")
	}
	if err != nil {
		return SupplierReviews{}, errors.Wrap(err, "find supplier")
	}

	list, total, err := s.store.ListReviews(ctx, Filter{Supplier: &supplierID, Rating: rating, Page: page, Limit: limit})
	if err != nil {
		return SupplierReviews{}, errors.Wrap(err, "list reviews")
	}
	summary, err := s.store.RatingSummary(ctx, supplierID)
	if err != nil {
		return SupplierReviews{}, errors.Wrap(err, "summarize ratings")
	}
	distribution, err := s.store.RatingDistribution(ctx, supplierID)
	if err != nil {
		return SupplierReviews{}, errors.Wrap(err, "rating distribution")
	}
	if distribution == nil {
		distribution = []RatingBucket{}
	}

	average, _ := decimal.NewFromFloat(summary.Average).Round(1).Float64()
	return SupplierReviews{
		Supplier: SupplierSummary{
			ID:          supplier.ID,
			Name:        supplier.Name,
			Rating:      supplier.Rating,
			ReviewCount: supplier.ReviewCount,
		},
		Statistics: Statistics{
			AverageRating: average,
			TotalReviews:  summary.Count,
			Distribution:  distribution,
		},
		Reviews: list,
		Total:   total,
	}, nil
}

func (s *Service) ListMine(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.Review, int64, error) {
	list, total, err := s.store.ListReviews(ctx, Filter{User: &userID, Page: page, Limit: limit})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list reviews")
	}
	return list, total, nil
}
