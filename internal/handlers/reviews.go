package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
	"supplyhub/internal/reviews"
)

type createReviewRequest struct {
	Supplier string `json:"supplier" binding:"required"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func GetSupplierReviews(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/:id"
		defer handlePanic(c, route)

		supplierID, ok := objectIDParam(c, "id", route, "Supplier")
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		rating := 0
		if raw := strings.TrimSpace(c.Query("rating")); raw != "" {
			rating, err = strconv.Atoi(raw)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "Rating must be a whole number")
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		result, err := svc.ListForSupplier(ctx, supplierID, rating, page, limit)
		if err != nil {
			respondError(c, route, err)
			return
		}

		list := result.Reviews
		if list == nil {
			list = []models.Review{}
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"count":      len(list),
			"pagination": newPagination(page, limit, result.Total),
			"supplier":   result.Supplier,
			"statistics": result.Statistics,
			"data":       list,
		})
	}
}

func GetMyReviews(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/user/me"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		list, total, err := svc.ListMine(ctx, actor.ID, page, limit)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if list == nil {
			list = []models.Review{}
		}
		respondPage(c, list, len(list), newPagination(page, limit, total))
	}
}

func CreateReview(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req createReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		supplierID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.Supplier))
		if err != nil {
			respondWithError(c, http.StatusNotFound, route, "Supplier not found")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		review, err := svc.Create(ctx, actor, reviews.CreateRequest{
			SupplierID: supplierID,
			Rating:     req.Rating,
			Comment:    req.Comment,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusCreated, review)
	}
}

func UpdateReview(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reviews/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Review")
		if !ok {
			return
		}

		var req updateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		review, err := svc.Update(ctx, actor, id, reviews.UpdateRequest{Rating: req.Rating, Comment: req.Comment})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, review)
	}
}

func DeleteReview(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Review")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*requestTimeout)
		defer cancel()

		if err := svc.Delete(ctx, actor, id); err != nil {
			respondError(c, route, err)
			return
		}
		respondMessage(c, http.StatusOK, "Review deleted successfully")
	}
}

func MarkReviewHelpful(svc *reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reviews/:id/helpful"
		defer handlePanic(c, route)

		if _, ok := requireActor(c, route); !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Review")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		review, err := svc.MarkHelpful(ctx, id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"helpfulCount": review.HelpfulCount}})
	}
}
