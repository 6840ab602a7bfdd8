package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/ai"
	"supplyhub/internal/models"
)

const (
	marketWindow          = 30 * 24 * time.Hour
	recommendationHistory = 5
	suggestionHistory     = 20
)

// OrderHistory is the read model behind the AI endpoints.
type OrderHistory interface {
	RecentOrders(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Order, error)
	MarketActivity(ctx context.Context, city string, since time.Time) ([]ai.CategoryActivity, error)
}

type predictDemandRequest struct {
	Product  string `json:"product" binding:"required"`
	Location string `json:"location" binding:"required"`
	Month    string `json:"month"`
	Season   string `json:"season"`
}

type recommendationsRequest struct {
	Location     string `json:"location" binding:"required"`
	Requirements string `json:"requirements" binding:"required"`
	Budget       string `json:"budget"`
}

func PredictDemand(advisor *ai.Advisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /ai/predict-demand"
		defer handlePanic(c, route)

		var req predictDemandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		period := strings.TrimSpace(req.Month)
		if period == "" {
			period = strings.TrimSpace(req.Season)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 6*requestTimeout)
		defer cancel()

		prediction := advisor.PredictDemand(ctx, strings.TrimSpace(req.Product), strings.TrimSpace(req.Location), period)
		respondData(c, http.StatusOK, prediction)
	}
}

// pastOrders summarizes orders for the recommendation prompt.
func pastOrders(list []models.Order) []ai.PastOrder {
	out := make([]ai.PastOrder, 0, len(list))
	for _, o := range list {
		names := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			names = append(names, item.Name)
		}
		out = append(out, ai.PastOrder{
			Supplier:    o.Supplier.Hex(),
			Products:    names,
			TotalAmount: o.TotalAmount,
			Date:        o.CreatedAt,
		})
	}
	return out
}

func Recommendations(advisor *ai.Advisor, history OrderHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /ai/recommendations"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req recommendationsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 6*requestTimeout)
		defer cancel()

		recent, err := history.RecentOrders(ctx, actor.ID, recommendationHistory)
		if err != nil {
			respondError(c, route, err)
			return
		}

		recs := advisor.Recommend(ctx, ai.Preferences{
			UserID:       actor.ID.Hex(),
			Location:     strings.TrimSpace(req.Location),
			Requirements: strings.TrimSpace(req.Requirements),
			Budget:       strings.TrimSpace(req.Budget),
			PastOrders:   pastOrders(recent),
		})
		respondData(c, http.StatusOK, recs)
	}
}

func MarketInsights(history OrderHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /ai/market-insights"
		defer handlePanic(c, route)

		if _, ok := requireActor(c, route); !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		rows, err := history.MarketActivity(ctx, strings.TrimSpace(c.Query("location")), time.Now().Add(-marketWindow))
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, ai.BuildMarketInsights(rows))
	}
}

func Suggestions(history OrderHistory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /ai/suggestions"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		recent, err := history.RecentOrders(ctx, actor.ID, suggestionHistory)
		if err != nil {
			respondError(c, route, err)
			return
		}

		prefs, suggestions := ai.Personalize(recent)
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"data":        suggestions,
			"preferences": prefs,
		})
	}
}
