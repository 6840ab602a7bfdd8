package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ProductCategories = []string{
	"Vegetables", "Fruits", "Dairy", "Eggs", "Meat", "Poultry", "Fish",
	"Grains", "Cereals", "Pulses", "Spices", "Condiments", "Beverages",
	"Snacks", "Confectionery", "Organic", "Frozen", "Bakery", "Other",
}

var ProductUnits = []string{
	"kg", "g", "l", "ml", "piece", "dozen", "pack", "box", "bundle", "ton", "quintal",
}

var Currencies = []string{"INR", "USD", "EUR"}

type Product struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Description          string             `bson:"description" json:"description"`
	Category             string             `bson:"category" json:"category"`
	Price                float64            `bson:"price" json:"price"`
	Unit                 string             `bson:"unit" json:"unit"`
	Currency             string             `bson:"currency" json:"currency"`
	Supplier             primitive.ObjectID `bson:"supplier" json:"supplier"`
	IsAvailable          bool               `bson:"isAvailable" json:"isAvailable"`
	MinimumOrderQuantity int                `bson:"minimumOrderQuantity" json:"minimumOrderQuantity"`
	StockQuantity        int                `bson:"stockQuantity" json:"stockQuantity"`
	Images               StringList         `bson:"images" json:"images"`
	Specifications       map[string]string  `bson:"specifications,omitempty" json:"specifications,omitempty"`
	Tags                 StringList         `bson:"tags" json:"tags"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func ValidProductCategory(category string) bool {
	return contains(ProductCategories, category)
}

func ValidUnit(unit string) bool {
	return contains(ProductUnits, unit)
}

func ValidCurrency(currency string) bool {
	return contains(Currencies, currency)
}
