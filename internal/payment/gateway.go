// Package payment talks to the card payment gateway and keeps order payment
// state in step with it.
package payment

import "context"

// Intent is the gateway handle returned to the client to complete a card
// payment.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

type AuthorizeRequest struct {
	OrderID    string
	UserID     string
	SupplierID string
	// Amount is in minor currency units.
	Amount   int64
	Currency string
}

type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Intent, error)
	Refund(ctx context.Context, intentID string) error
}
