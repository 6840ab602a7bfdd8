package pricing

import "github.com/shopspring/decimal"

// Spread summarizes a set of prices for the same product across suppliers.
type Spread struct {
	Min     float64 `json:"minPrice"`
	Max     float64 `json:"maxPrice"`
	Average float64 `json:"avgPrice"`
	Range   float64 `json:"priceRange"`
}

func SpreadOf(prices []float64) Spread {
	if len(prices) == 0 {
		return Spread{}
	}

	sum := decimal.Zero
	min, max := prices[0], prices[0]
	for _, p := range prices {
		sum = sum.Add(decimal.NewFromFloat(p))
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	avg := sum.Div(decimal.NewFromInt(int64(len(prices)))).Round(2)
	return Spread{
		Min:     min,
		Max:     max,
		Average: Float(avg),
		Range:   Float(decimal.NewFromFloat(max).Sub(decimal.NewFromFloat(min)).Round(2)),
	}
}
