package ai

import (
	"math"
	"sort"

	"supplyhub/internal/models"
)

// CategoryActivity is one supplier category's order volume in an area.
type CategoryActivity struct {
	Category      string  `json:"category" bson:"_id"`
	OrderCount    int     `json:"orderCount" bson:"orderCount"`
	TotalValue    float64 `json:"totalValue" bson:"totalValue"`
	AvgOrderValue float64 `json:"avgOrderValue" bson:"avgOrderValue"`
}

type MarketTrends struct {
	TotalOrders   int     `json:"totalOrders"`
	TotalValue    float64 `json:"totalValue"`
	AvgOrderValue float64 `json:"avgOrderValue"`
}

type MarketInsights struct {
	TopCategories   []CategoryActivity `json:"topCategories"`
	MarketTrends    MarketTrends       `json:"marketTrends"`
	Recommendations []string           `json:"recommendations"`
}

// BuildMarketInsights ranks categories by order count and totals them.
func BuildMarketInsights(rows []CategoryActivity) MarketInsights {
	sorted := append([]CategoryActivity(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderCount > sorted[j].OrderCount })

	var trends MarketTrends
	var avgSum float64
	for _, r := range sorted {
		trends.TotalOrders += r.OrderCount
		trends.TotalValue += r.TotalValue
		avgSum += r.AvgOrderValue
	}
	if len(sorted) > 0 {
		trends.AvgOrderValue = round2(avgSum / float64(len(sorted)))
	}
	trends.TotalValue = round2(trends.TotalValue)

	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}
	if top == nil {
		top = []CategoryActivity{}
	}

	return MarketInsights{
		TopCategories: top,
		MarketTrends:  trends,
		Recommendations: []string{
			"Consider seasonal demand patterns for better inventory planning",
			"Focus on high-demand categories for maximum profitability",
			"Monitor competitor pricing in popular categories",
		},
	}
}

type BuyerPreferences struct {
	FavoriteCategories map[string]int `json:"favoriteCategories"`
	PreferredSuppliers map[string]int `json:"preferredSuppliers"`
	AverageOrderValue  float64        `json:"averageOrderValue"`
	OrderFrequency     int            `json:"orderFrequency"`
}

type SuggestionInsights struct {
	TopCategory    string `json:"topCategory"`
	AverageSpend   int64  `json:"averageSpend"`
	OrderFrequency string `json:"orderFrequency"`
}

type Suggestions struct {
	BasedOnHistory  []string           `json:"basedOnHistory"`
	Recommendations []string           `json:"recommendations"`
	Insights        SuggestionInsights `json:"insights"`
}

// Personalize derives buying preferences from a buyer's recent orders.
func Personalize(orders []models.Order) (BuyerPreferences, Suggestions) {
	prefs := BuyerPreferences{
		FavoriteCategories: map[string]int{},
		PreferredSuppliers: map[string]int{},
		OrderFrequency:     len(orders),
	}

	var total float64
	for _, o := range orders {
		total += o.TotalAmount
		for _, item := range o.Items {
			if item.Category != "" {
				prefs.FavoriteCategories[item.Category]++
			}
		}
		prefs.PreferredSuppliers[o.Supplier.Hex()]++
	}
	if len(orders) > 0 {
		prefs.AverageOrderValue = round2(total / float64(len(orders)))
	}

	frequency := "Low"
	switch {
	case len(orders) > 10:
		frequency = "High"
	case len(orders) > 5:
		frequency = "Medium"
	}

	return prefs, Suggestions{
		BasedOnHistory: []string{
			"Consider reordering from your favorite suppliers",
			"Explore similar products in your preferred categories",
			"Try new suppliers in your trusted categories",
		},
		Recommendations: []string{
			"Set up automatic reorders for frequently purchased items",
			"Explore bulk purchasing options for better pricing",
			"Consider seasonal products based on your location",
		},
		Insights: SuggestionInsights{
			TopCategory:    topKey(prefs.FavoriteCategories),
			AverageSpend:   int64(math.Round(prefs.AverageOrderValue)),
			OrderFrequency: frequency,
		},
	}
}

// topKey returns the most frequent key, breaking ties alphabetically.
func topKey(counts map[string]int) string {
	best, bestN := "None", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
