package payment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
)

const DefaultStripeURL = "https://api.stripe.com"

// StripeGateway calls the Stripe REST API directly.
type StripeGateway struct {
	client *resty.Client
}

type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewStripeGateway(baseURL, secretKey string, timeout time.Duration) *StripeGateway {
	if baseURL == "" {
		baseURL = DefaultStripeURL
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(secretKey).
		SetTimeout(timeout)
	return &StripeGateway{client: client}
}

// Authorize creates a payment intent. The idempotency key is derived from the
// order so repeated attempts for the same order return the same intent.
func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (Intent, error) {
	var result struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	var apiErr stripeErrorBody

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "order-"+req.OrderID).
		SetFormData(map[string]string{
			"amount":               strconv.FormatInt(req.Amount, 10),
			"currency":             strings.ToLower(req.Currency),
			"metadata[orderId]":    req.OrderID,
			"metadata[userId]":     req.UserID,
			"metadata[supplierId]": req.SupplierID,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/payment_intents")
	if err != nil {
		return Intent{}, errors.Wrap(err, "create payment intent")
	}
	if resp.IsError() {
		return Intent{}, errors.Newf("create payment intent: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	if result.ID == "" {
		return Intent{}, errors.New("create payment intent: empty intent id")
	}

	return Intent{ID: result.ID, ClientSecret: result.ClientSecret}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	var apiErr stripeErrorBody

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", "refund-"+intentID).
		SetFormData(map[string]string{"payment_intent": intentID}).
		SetError(&apiErr).
		Post("/v1/refunds")
	if err != nil {
		return errors.Wrap(err, "create refund")
	}
	if resp.IsError() {
		return errors.Newf("create refund: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}
	return nil
}
