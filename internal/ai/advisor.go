// Package ai answers recommendation, demand and copywriting questions with an
// OpenAI-compatible chat model, falling back to fixed answers whenever the
// model is not configured or does not respond usefully.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"

	"supplyhub/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"

	SourceModel    = "model"
	SourceFallback = "fallback"
)

type Advisor struct {
	client *resty.Client
	model  string
}

// NewAdvisor returns an advisor that calls the chat completions endpoint at
// baseURL. An empty apiKey disables outbound calls.
func NewAdvisor(baseURL, apiKey, model string, timeout time.Duration) *Advisor {
	if model == "" {
		model = DefaultModel
	}
	if apiKey == "" {
		return &Advisor{model: model}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetTimeout(timeout)
	return &Advisor{client: client, model: model}
}

func (a *Advisor) Enabled() bool {
	return a != nil && a.client != nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var errDisabled = errors.New("ai provider not configured")

func (a *Advisor) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if !a.Enabled() {
		return "", errDisabled
	}

	var out chatResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       a.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if resp.IsError() {
		return "", errors.Newf("chat completion: status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("chat completion: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// completeJSON asks the model for JSON and decodes it into v.
func (a *Advisor) completeJSON(ctx context.Context, prompt string, temperature float64, maxTokens int, v interface{}) error {
	content, err := a.complete(ctx, prompt, temperature, maxTokens)
	if err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return errors.Wrap(err, "decode model response")
	}
	return nil
}

func fallback(operation string, err error) {
	metrics.AIFallbacks.WithLabelValues(operation).Inc()
	if !errors.Is(err, errDisabled) {
		log.Printf("[AI] [WARN] %s fell back to default answer: %v", operation, err)
	}
}

type PastOrder struct {
	Supplier    string    `json:"supplier"`
	Products    []string  `json:"products"`
	TotalAmount float64   `json:"totalAmount"`
	Date        time.Time `json:"date"`
}

type Preferences struct {
	UserID       string      `json:"userId"`
	Location     string      `json:"location"`
	Requirements string      `json:"requirements"`
	Budget       string      `json:"budget,omitempty"`
	PastOrders   []PastOrder `json:"pastOrders,omitempty"`
}

type SupplierSuggestion struct {
	Name              string `json:"name"`
	Category          string `json:"category"`
	Reasoning         string `json:"reasoning"`
	EstimatedDistance string `json:"estimatedDistance"`
	PriceRange        string `json:"priceRange"`
}

type Recommendations struct {
	Suppliers []SupplierSuggestion `json:"suppliers"`
	Source    string               `json:"source"`
}

func defaultRecommendations() Recommendations {
	return Recommendations{
		Source: SourceFallback,
		Suppliers: []SupplierSuggestion{
			{
				Name:              "Local Fresh Produce Co.",
				Category:          "Vegetables & Fruits",
				Reasoning:         "Recommended based on location proximity and positive reviews",
				EstimatedDistance: "2-5 km",
				PriceRange:        "Budget-friendly",
			},
			{
				Name:              "Premium Suppliers Ltd.",
				Category:          "Organic Products",
				Reasoning:         "High-quality organic products with verified certifications",
				EstimatedDistance: "5-10 km",
				PriceRange:        "Premium",
			},
		},
	}
}

// Recommend suggests suppliers for a buyer. It always returns an answer.
func (a *Advisor) Recommend(ctx context.Context, prefs Preferences) Recommendations {
	budget := prefs.Budget
	if budget == "" {
		budget = "Not specified"
	}
	prompt := fmt.Sprintf(`As an AI assistant for a B2B supplier discovery platform, suggest 3-5 suppliers for a street-food vendor.
Location: %s
Requirements: %s
Budget: %s
Recent orders: %d
Respond only with JSON of the form {"suppliers":[{"name":"","category":"","reasoning":"","estimatedDistance":"","priceRange":"Budget-friendly|Mid-range|Premium"}]}`,
		prefs.Location, prefs.Requirements, budget, len(prefs.PastOrders))

	var out Recommendations
	if err := a.completeJSON(ctx, prompt, 0.7, 500, &out); err != nil {
		fallback("recommend", err)
		return defaultRecommendations()
	}
	if len(out.Suppliers) == 0 {
		fallback("recommend", errors.New("no suppliers in response"))
		return defaultRecommendations()
	}
	out.Source = SourceModel
	return out
}

type DemandPrediction struct {
	Product         string   `json:"product"`
	Location        string   `json:"location"`
	Month           string   `json:"month"`
	PredictedDemand string   `json:"predictedDemand"`
	DemandVolume    string   `json:"demandVolume"`
	Confidence      string   `json:"confidence"`
	Factors         []string `json:"factors"`
	Recommendations string   `json:"recommendations"`
	Source          string   `json:"source"`
}

func defaultPrediction(product, location, period string, providerFailed bool) DemandPrediction {
	p := DemandPrediction{
		Product:         product,
		Location:        location,
		Month:           period,
		PredictedDemand: "Medium",
		DemandVolume:    "500-1000 kg",
		Confidence:      "Medium",
		Factors:         []string{"Seasonal demand", "Market trends"},
		Recommendations: "Monitor local market conditions and adjust inventory accordingly",
		Source:          SourceFallback,
	}
	if providerFailed {
		p.Confidence = "Low"
		p.Factors = []string{"Limited data available"}
		p.Recommendations = "Gather more historical data for better predictions"
	}
	return p
}

// PredictDemand estimates demand for a product in a location over a period
// (a month or season name).
func (a *Advisor) PredictDemand(ctx context.Context, product, location, period string) DemandPrediction {
	if period == "" {
		period = "General"
	}
	prompt := fmt.Sprintf(`As an AI demand prediction system, analyze the demand for %s in %s during %s.
Consider seasonal variations, local market trends, weather patterns and cultural events.
Respond only with JSON of the form {"product":"","location":"","month":"","predictedDemand":"High|Medium|Low","demandVolume":"","confidence":"High|Medium|Low","factors":[""],"recommendations":""}`,
		product, location, period)

	var out DemandPrediction
	err := a.completeJSON(ctx, prompt, 0.3, 400, &out)
	if err != nil {
		fallback("predict_demand", err)
		return defaultPrediction(product, location, period, !errors.Is(err, errDisabled))
	}
	if out.Product == "" {
		out.Product = product
	}
	if out.Location == "" {
		out.Location = location
	}
	if out.Month == "" {
		out.Month = period
	}
	if out.Confidence == "" {
		out.Confidence = "Medium"
	}
	out.Source = SourceModel
	return out
}

// DescribeProduct writes a short catalogue description.
func (a *Advisor) DescribeProduct(ctx context.Context, name, category string) string {
	prompt := fmt.Sprintf(`Write a professional, business-focused description for %s in the %s category for a B2B supplier platform. Mention key features, quality indicators and business uses. Keep it under 100 words.`,
		name, category)

	content, err := a.complete(ctx, prompt, 0.5, 150)
	if err != nil {
		fallback("describe_product", err)
		return fmt.Sprintf("%s - Premium %s product with excellent quality and competitive pricing.", name, category)
	}
	return strings.TrimSpace(content)
}
