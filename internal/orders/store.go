package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
)

// Store is the persistence the order workflows run against. Methods called
// inside WithTransaction must use the context passed to the callback.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	FindSupplier(ctx context.Context, id primitive.ObjectID) (models.Supplier, error)
	FindProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error)

	// DecrementStock subtracts qty only when at least qty is in stock and
	// reports whether it did.
	DecrementStock(ctx context.Context, productID primitive.ObjectID, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID primitive.ObjectID, qty int) error

	InsertOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	// TransitionOrder applies upd only while the order status is one of
	// from. It returns the updated order and whether the update applied.
	TransitionOrder(ctx context.Context, id primitive.ObjectID, from []string, upd Update) (models.Order, bool, error)
	ListOrders(ctx context.Context, filter Filter) ([]models.Order, int64, error)
	OrderStats(ctx context.Context, userID primitive.ObjectID) (Stats, error)
}

// Update is the set of mutable order fields. Zero values are left alone.
type Update struct {
	Status            string
	TrackingNumber    string
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
	UpdatedAt         time.Time
}

type Filter struct {
	User      *primitive.ObjectID
	Suppliers []primitive.ObjectID
	Status    string
	Page      int
	Limit     int
}

func (f Filter) Skip() int64 {
	if f.Page < 1 {
		return 0
	}
	return int64((f.Page - 1) * f.Limit)
}

type StatusCount struct {
	Status string `json:"status" bson:"_id"`
	Count  int    `json:"count" bson:"count"`
}

type Overview struct {
	TotalOrders   int     `json:"totalOrders" bson:"totalOrders"`
	TotalSpent    float64 `json:"totalSpent" bson:"totalSpent"`
	AvgOrderValue float64 `json:"avgOrderValue" bson:"avgOrderValue"`
}

type Stats struct {
	Overview        Overview      `json:"overview"`
	StatusBreakdown []StatusCount `json:"statusBreakdown"`
}
