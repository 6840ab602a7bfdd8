package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDisabledAdvisorFallsBack(t *testing.T) {
	a := NewAdvisor("", "", "", time.Second)
	assert.False(t, a.Enabled())

	recs := a.Recommend(context.Background(), Preferences{Location: "Chennai", Requirements: "onions"})
	assert.Equal(t, SourceFallback, recs.Source)
	assert.Len(t, recs.Suppliers, 2)

	p := a.PredictDemand(context.Background(), "Tomatoes", "Chennai", "")
	assert.Equal(t, "General", p.Month)
	assert.Equal(t, "Medium", p.Confidence)
	assert.Equal(t, SourceFallback, p.Source)

	assert.Equal(t, "Paneer - Premium Dairy product with excellent quality and competitive pricing.",
		a.DescribeProduct(context.Background(), "Paneer", "Dairy"))
}

func TestRecommendUsesModelJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n{\"suppliers\":[{\"name\":\"Spice Route\",\"category\":\"Spices & Condiments\",\"reasoning\":\"close\",\"estimatedDistance\":\"3 km\",\"priceRange\":\"Mid-range\"}]}\n```")
	a := NewAdvisor(srv.URL, "sk-test", "test-model", time.Second)

	recs := a.Recommend(context.Background(), Preferences{Location: "Pune", Requirements: "chilli"})
	assert.Equal(t, SourceModel, recs.Source)
	require.Len(t, recs.Suppliers, 1)
	assert.Equal(t, "Spice Route", recs.Suppliers[0].Name)
}

func TestPredictDemandProviderErrorLowersConfidence(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	a := NewAdvisor(srv.URL, "sk-test", "test-model", time.Second)

	p := a.PredictDemand(context.Background(), "Tomatoes", "Chennai", "June")
	assert.Equal(t, SourceFallback, p.Source)
	assert.Equal(t, "Low", p.Confidence)
	assert.Equal(t, "June", p.Month)
}

func TestPredictDemandUnparseableFallsBack(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "demand will be high")
	a := NewAdvisor(srv.URL, "sk-test", "test-model", time.Second)

	p := a.PredictDemand(context.Background(), "Onions", "Delhi", "Winter")
	assert.Equal(t, SourceFallback, p.Source)
	assert.Equal(t, "Onions", p.Product)
}

func TestDescribeProductUsesModelText(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "  Crisp red onions sourced daily. ")
	a := NewAdvisor(srv.URL, "sk-test", "test-model", time.Second)
	assert.Equal(t, "Crisp red onions sourced daily.", a.DescribeProduct(context.Background(), "Onions", "Vegetables"))
}

func TestBuildMarketInsights(t *testing.T) {
	insights := BuildMarketInsights([]CategoryActivity{
		{Category: "Dairy & Eggs", OrderCount: 2, TotalValue: 400, AvgOrderValue: 200},
		{Category: "Vegetables & Fruits", OrderCount: 5, TotalValue: 1000, AvgOrderValue: 200},
		{Category: "Bakery", OrderCount: 1, TotalValue: 100, AvgOrderValue: 100},
	})

	assert.Equal(t, "Vegetables & Fruits", insights.TopCategories[0].Category)
	assert.Equal(t, 8, insights.MarketTrends.TotalOrders)
	assert.Equal(t, 1500.0, insights.MarketTrends.TotalValue)
	assert.Equal(t, 166.67, insights.MarketTrends.AvgOrderValue)

	empty := BuildMarketInsights(nil)
	assert.NotNil(t, empty.TopCategories)
	assert.Zero(t, empty.MarketTrends.TotalOrders)
}

func TestPersonalize(t *testing.T) {
	supplier := primitive.NewObjectID()
	orders := []models.Order{
		{Supplier: supplier, TotalAmount: 100, Items: []models.OrderItem{{Category: "Vegetables"}, {Category: "Spices"}}},
		{Supplier: supplier, TotalAmount: 301, Items: []models.OrderItem{{Category: "Vegetables"}}},
	}

	prefs, suggestions := Personalize(orders)
	assert.Equal(t, 2, prefs.FavoriteCategories["Vegetables"])
	assert.Equal(t, 2, prefs.PreferredSuppliers[supplier.Hex()])
	assert.Equal(t, 200.5, prefs.AverageOrderValue)
	assert.Equal(t, "Vegetables", suggestions.Insights.TopCategory)
	assert.Equal(t, int64(201), suggestions.Insights.AverageSpend)
	assert.Equal(t, "Low", suggestions.Insights.OrderFrequency)

	_, none := Personalize(nil)
	assert.Equal(t, "None", none.Insights.TopCategory)
}
