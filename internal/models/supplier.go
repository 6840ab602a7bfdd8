package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var SupplierCategories = []string{
	"Vegetables & Fruits",
	"Dairy & Eggs",
	"Meat & Poultry",
	"Grains & Cereals",
	"Spices & Condiments",
	"Beverages",
	"Snacks & Confectionery",
	"Organic Products",
	"Frozen Foods",
	"Bakery",
	"Other",
}

type BusinessHours struct {
	Open     string     `bson:"open" json:"open"`
	Close    string     `bson:"close" json:"close"`
	DaysOpen StringList `bson:"daysOpen" json:"daysOpen"`
}

func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Open:     "09:00",
		Close:    "18:00",
		DaysOpen: StringList{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	}
}

// Supplier is a business selling products to vendors. Rating and ReviewCount
// are derived from the reviews collection.
type Supplier struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	Category       string             `bson:"category" json:"category"`
	Location       *GeoPoint          `bson:"location,omitempty" json:"location,omitempty"`
	Address        string             `bson:"address" json:"address"`
	City           string             `bson:"city" json:"city"`
	State          string             `bson:"state" json:"state"`
	Phone          string             `bson:"phone" json:"phone"`
	Email          string             `bson:"email" json:"email"`
	Website        string             `bson:"website,omitempty" json:"website,omitempty"`
	Rating         float64            `bson:"rating" json:"rating"`
	ReviewCount    int                `bson:"reviewCount" json:"reviewCount"`
	IsVerified     bool               `bson:"isVerified" json:"isVerified"`
	BusinessHours  BusinessHours      `bson:"businessHours" json:"businessHours"`
	MinimumOrder   float64            `bson:"minimumOrder" json:"minimumOrder"`
	DeliveryRadius float64            `bson:"deliveryRadius" json:"deliveryRadius"`
	PaymentMethods StringList         `bson:"paymentMethods" json:"paymentMethods"`
	Certifications StringList         `bson:"certifications" json:"certifications"`
	Owner          primitive.ObjectID `bson:"owner" json:"owner"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`

	// Distance is filled in by nearby searches, in kilometers.
	Distance *float64 `bson:"-" json:"distance,omitempty"`
}

func ValidSupplierCategory(category string) bool {
	return contains(SupplierCategories, category)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
