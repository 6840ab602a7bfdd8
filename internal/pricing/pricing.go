// Package pricing holds the order arithmetic: line totals, tax and the
// delivery fee tier. Amounts are computed in decimal and converted to float64
// only at the edges.
package pricing

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Policy holds the business constants applied at checkout.
type Policy struct {
	TaxRate               decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:               decimal.RequireFromString("0.18"),
		FreeDeliveryThreshold: decimal.NewFromInt(1000),
		DeliveryFee:           decimal.NewFromInt(100),
	}
}

// NewPolicy builds a policy from configured float values.
func NewPolicy(taxRate, freeDeliveryThreshold, deliveryFee float64) (Policy, error) {
	if taxRate < 0 || taxRate >= 1 {
		return Policy{}, errors.Newf("tax rate must be in [0, 1), got %v", taxRate)
	}
	if freeDeliveryThreshold < 0 || deliveryFee < 0 {
		return Policy{}, errors.New("delivery threshold and fee must not be negative")
	}
	return Policy{
		TaxRate:               decimal.NewFromFloat(taxRate),
		FreeDeliveryThreshold: decimal.NewFromFloat(freeDeliveryThreshold),
		DeliveryFee:           decimal.NewFromFloat(deliveryFee),
	}, nil
}

type Breakdown struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Quote applies the policy to a subtotal. Delivery is free only when the
// subtotal is strictly above the threshold.
func (p Policy) Quote(subtotal decimal.Decimal) Breakdown {
	tax := subtotal.Mul(p.TaxRate).Round(2)

	fee := p.DeliveryFee
	if subtotal.GreaterThan(p.FreeDeliveryThreshold) {
		fee = decimal.Zero
	}

	return Breakdown{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal.Add(tax).Add(fee),
	}
}

// LineTotal is unitPrice * quantity rounded to 2 places.
func LineTotal(unitPrice float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Float converts a decimal amount for storage.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents)
// as payment gateways expect.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
