package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	PaymentMethodCash         = "Cash"
	PaymentMethodBankTransfer = "Bank Transfer"
	PaymentMethodCard         = "Credit Card"
	PaymentMethodUPI          = "UPI"
	PaymentMethodCheque       = "Cheque"
)

var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodBankTransfer,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodCheque,
}

// OrderStatusPipeline lists the forward progression of an order.
var OrderStatusPipeline = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// OrderItem is a snapshot of a product line taken at checkout.
type OrderItem struct {
	Product    primitive.ObjectID `bson:"product" json:"product"`
	Name       string             `bson:"name" json:"name"`
	Category   string             `bson:"category,omitempty" json:"category,omitempty"`
	Unit       string             `bson:"unit,omitempty" json:"unit,omitempty"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	UnitPrice  float64            `bson:"unitPrice" json:"unitPrice"`
	TotalPrice float64            `bson:"totalPrice" json:"totalPrice"`
}

type DeliveryAddress struct {
	Street  string `bson:"street" json:"street" binding:"required"`
	City    string `bson:"city" json:"city" binding:"required"`
	State   string `bson:"state" json:"state" binding:"required"`
	ZipCode string `bson:"zipCode" json:"zipCode" binding:"required"`
	Phone   string `bson:"phone" json:"phone" binding:"required"`
}

// Order defines the persisted order document. Items and the monetary fields
// are written once at checkout.
type Order struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User                 primitive.ObjectID `bson:"user" json:"user"`
	Supplier             primitive.ObjectID `bson:"supplier" json:"supplier"`
	Items                []OrderItem        `bson:"items" json:"items"`
	Subtotal             float64            `bson:"subtotal" json:"subtotal"`
	Tax                  float64            `bson:"tax" json:"tax"`
	DeliveryFee          float64            `bson:"deliveryFee" json:"deliveryFee"`
	TotalAmount          float64            `bson:"totalAmount" json:"totalAmount"`
	Currency             string             `bson:"currency" json:"currency"`
	Status               string             `bson:"status" json:"status"`
	PaymentStatus        string             `bson:"paymentStatus" json:"paymentStatus"`
	PaymentMethod        string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentIntentID      string             `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
	PaymentAttempts      int                `bson:"paymentAttempts" json:"paymentAttempts"`
	DeliveryAddress      DeliveryAddress    `bson:"deliveryAddress" json:"deliveryAddress"`
	DeliveryInstructions string             `bson:"deliveryInstructions,omitempty" json:"deliveryInstructions,omitempty"`
	EstimatedDelivery    *time.Time         `bson:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`
	ActualDelivery       *time.Time         `bson:"actualDelivery,omitempty" json:"actualDelivery,omitempty"`
	TrackingNumber       string             `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Notes                string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func ValidPaymentMethod(method string) bool {
	return contains(PaymentMethods, method)
}

// StatusRank returns the position of status in the pipeline, or -1 for
// cancelled and unknown values.
func StatusRank(status string) int {
	for i, s := range OrderStatusPipeline {
		if s == status {
			return i
		}
	}
	return -1
}

func ValidOrderStatus(status string) bool {
	return status == OrderStatusCancelled || StatusRank(status) >= 0
}

// IsTerminal reports whether an order in this status can no longer change.
func IsTerminal(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

func Cancellable(status string) bool {
	return status == OrderStatusPending || status == OrderStatusConfirmed
}
