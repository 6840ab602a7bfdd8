package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/ai"
	"supplyhub/internal/models"
)

type fakeHistory struct {
	orders   []models.Order
	activity []ai.CategoryActivity
	err      error

	city  string
	limit int
}

func (f *fakeHistory) RecentOrders(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Order, error) {
	f.limit = limit
	return f.orders, f.err
}

func (f *fakeHistory) MarketActivity(ctx context.Context, city string, since time.Time) ([]ai.CategoryActivity, error) {
	f.city = city
	return f.activity, f.err
}

func aiRouter(history OrderHistory, actor models.Actor) *gin.Engine {
	advisor := ai.NewAdvisor("", "", "", time.Second)
	r := gin.New()
	api := r.Group("/api", asActor(actor))
	api.POST("/ai/predict-demand", PredictDemand(advisor))
	api.POST("/ai/recommendations", Recommendations(advisor, history))
	api.GET("/ai/market-insights", MarketInsights(history))
	api.GET("/ai/suggestions", Suggestions(history))
	return r
}

func TestPredictDemandFallsBackWithoutProvider(t *testing.T) {
	r := aiRouter(&fakeHistory{}, models.Actor{})

	w, body := doJSON(t, r, http.MethodPost, "/api/ai/predict-demand", gin.H{"product": "Onions", "location": "Pune", "season": "Monsoon"}, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Onions", data["product"])
	assert.Equal(t, "Monsoon", data["month"])
	assert.Equal(t, ai.SourceFallback, data["source"])
}

func TestPredictDemandRequiresProduct(t *testing.T) {
	w, _ := doJSON(t, aiRouter(&fakeHistory{}, models.Actor{}), http.MethodPost, "/api/ai/predict-demand", gin.H{"location": "Pune"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsUsesRecentOrders(t *testing.T) {
	history := &fakeHistory{orders: []models.Order{{Supplier: primitive.NewObjectID(), Items: []models.OrderItem{{Name: "Paneer"}}}}}
	buyer := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}

	w, body := doJSON(t, aiRouter(history, buyer), http.MethodPost, "/api/ai/recommendations", gin.H{"location": "Delhi", "requirements": "dairy"}, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, recommendationHistory, history.limit)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["suppliers"])
}

func TestMarketInsightsPassesCity(t *testing.T) {
	history := &fakeHistory{activity: []ai.CategoryActivity{
		{Category: "Spices", OrderCount: 3, TotalValue: 900, AvgOrderValue: 300},
		{Category: "Dairy", OrderCount: 5, TotalValue: 1000, AvgOrderValue: 200},
	}}
	buyer := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}

	w, body := doJSON(t, aiRouter(history, buyer), http.MethodGet, "/api/ai/market-insights?location=Mumbai", nil, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Mumbai", history.city)
	data := body["data"].(map[string]interface{})
	top := data["topCategories"].([]interface{})
	require.Len(t, top, 2)
	assert.Equal(t, "Dairy", top[0].(map[string]interface{})["category"])
}

func TestSuggestionsReportsStoreFailure(t *testing.T) {
	history := &fakeHistory{err: errors.New("connection reset")}
	buyer := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}

	w, body := doJSON(t, aiRouter(history, buyer), http.MethodGet, "/api/ai/suggestions", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server error", body["message"])
}

func TestSuggestionsSummarizesHistory(t *testing.T) {
	history := &fakeHistory{orders: []models.Order{
		{Supplier: primitive.NewObjectID(), TotalAmount: 100, Items: []models.OrderItem{{Category: "Spices"}}},
		{Supplier: primitive.NewObjectID(), TotalAmount: 300, Items: []models.OrderItem{{Category: "Spices"}}},
	}}
	buyer := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}

	w, body := doJSON(t, aiRouter(history, buyer), http.MethodGet, "/api/ai/suggestions", nil, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, suggestionHistory, history.limit)
	insights := body["data"].(map[string]interface{})["insights"].(map[string]interface{})
	assert.Equal(t, "Spices", insights["topCategory"])
	assert.EqualValues(t, 200, insights["averageSpend"])
	assert.Equal(t, "Low", insights["orderFrequency"])
}
