// Package orders implements checkout, cancellation, status changes and
// tracking for buyer orders.
package orders

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/metrics"
	"supplyhub/internal/models"
	"supplyhub/internal/payment"
	"supplyhub/internal/pricing"
)

const (
	maxInstructionsLength = 200
	maxNotesLength        = 500
)

// Payments is the payment collaborator used after an order commits.
type Payments interface {
	Authorize(ctx context.Context, order models.Order) (*payment.Intent, error)
	Refund(ctx context.Context, order models.Order) error
}

type Service struct {
	store    Store
	payments Payments
	policy   pricing.Policy
	currency string
	now      func() time.Time
}

func NewService(store Store, payments Payments, policy pricing.Policy, currency string) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		store:    store,
		payments: payments,
		policy:   policy,
		currency: currency,
		now:      time.Now,
	}
}

type LineRequest struct {
	ProductID primitive.ObjectID
	Quantity  int
}

type PlaceRequest struct {
	UserID               primitive.ObjectID
	SupplierID           primitive.ObjectID
	Items                []LineRequest
	DeliveryAddress      models.DeliveryAddress
	PaymentMethod        string
	DeliveryInstructions string
	Notes                string
}

func (r PlaceRequest) validate() error {
	if r.UserID.IsZero() {
		return apperr.Unauthorized("Not authorized")
	}
	if r.SupplierID.IsZero() {
		return apperr.Validation("supplierId is required")
	}
	if len(r.Items) == 0 {
		return apperr.Validation("Order must contain at least one item")
	}
	for i, item := range r.Items {
		if item.ProductID.IsZero() {
			return apperr.Validation("items[%d].product is required", i)
		}
		if item.Quantity < 1 {
			return apperr.Validation("items[%d].quantity must be at least 1", i)
		}
	}
	if !models.ValidPaymentMethod(r.PaymentMethod) {
		return apperr.Validation("Invalid payment method")
	}
	addr := r.DeliveryAddress
	fields := []struct{ name, value string }{
		{"street", addr.Street},
		{"city", addr.City},
		{"state", addr.State},
		{"zipCode", addr.ZipCode},
		{"phone", addr.Phone},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Validation("deliveryAddress.%s is required", f.name)
		}
	}
	if len(r.DeliveryInstructions) > maxInstructionsLength {
		return apperr.Validation("Delivery instructions cannot be more than %d characters", maxInstructionsLength)
	}
	if len(r.Notes) > maxNotesLength {
		return apperr.Validation("Notes cannot be more than %d characters", maxNotesLength)
	}
	return nil
}

// Placement is the result of a checkout. Payment is set only when a card
// authorization succeeded inline.
type Placement struct {
	Order   models.Order    `json:"order"`
	Payment *payment.Intent `json:"paymentIntent"`
}

// Place validates the cart, reserves stock and records the order in one
// transaction. Card payment is requested after commit and never fails the
// placement.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (Placement, error) {
	if err := req.validate(); err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return Placement{}, err
	}

	var order models.Order
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		built, err := s.reserve(txCtx, req)
		if err != nil {
			return err
		}
		if err := s.store.InsertOrder(txCtx, &built); err != nil {
			return errors.Wrap(err, "insert order")
		}
		order = built
		return nil
	})
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return Placement{}, err
	}

	metrics.OrdersPlaced.WithLabelValues(order.PaymentMethod).Inc()
	log.Printf("[ORDER] [INFO] order %s placed: user=%s supplier=%s total=%.2f",
		order.ID.Hex(), order.User.Hex(), order.Supplier.Hex(), order.TotalAmount)

	placement := Placement{Order: order}
	if order.PaymentMethod == models.PaymentMethodCard && s.payments != nil {
		intent, err := s.payments.Authorize(ctx, order)
		if err != nil {
			log.Printf("[ORDER] [WARN] payment for order %s not authorized, left pending: %v", order.ID.Hex(), err)
		} else if intent != nil {
			placement.Payment = intent
			placement.Order.PaymentIntentID = intent.ID
		}
	}

	return placement, nil
}

// reserve resolves every line and decrements its stock. It must run inside
// the placement transaction so a failing line rolls back earlier ones.
func (s *Service) reserve(ctx context.Context, req PlaceRequest) (models.Order, error) {
	supplier, err := s.store.FindSupplier(ctx, req.SupplierID)
	if errors.Is(err, models.ErrNotFound) {
		return models.Order{}, apperr.NotFound("Supplier not found")
	}
	if err != nil {
		return models.Order{}, errors.Wrap(err, "find supplier")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	subtotal := decimal.Zero

	for _, line := range req.Items {
		product, err := s.store.FindProduct(ctx, line.ProductID)
		if errors.Is(err, models.ErrNotFound) {
			return models.Order{}, apperr.NotFound("Product %s not found", line.ProductID.Hex())
		}
		if err != nil {
			return models.Order{}, errors.Wrapf(err, "find product %s", line.ProductID.Hex())
		}

		if product.Supplier != supplier.ID {
			return models.Order{}, apperr.InvalidState("Product %s is not sold by %s", product.Name, supplier.Name)
		}
		if !product.IsAvailable {
			return models.Order{}, apperr.InvalidState("Product %s is not available", product.Name)
		}
		if product.MinimumOrderQuantity > 0 && line.Quantity < product.MinimumOrderQuantity {
			return models.Order{}, apperr.InvalidState("Minimum order quantity for %s is %d", product.Name, product.MinimumOrderQuantity)
		}
		if product.StockQuantity < line.Quantity {
			return models.Order{}, apperr.InsufficientStock(product.ID.Hex(), product.Name, product.StockQuantity, line.Quantity)
		}

		ok, err := s.store.DecrementStock(ctx, product.ID, line.Quantity)
		if err != nil {
			return models.Order{}, errors.Wrapf(err, "reserve stock for %s", product.ID.Hex())
		}
		if !ok {
			// Another checkout took the stock between the read and the update.
			available := 0
			if current, err := s.store.FindProduct(ctx, product.ID); err == nil {
				available = current.StockQuantity
			}
			return models.Order{}, apperr.InsufficientStock(product.ID.Hex(), product.Name, available, line.Quantity)
		}

		lineTotal := pricing.LineTotal(product.Price, line.Quantity)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			Product:    product.ID,
			Name:       product.Name,
			Category:   product.Category,
			Unit:       product.Unit,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			TotalPrice: pricing.Float(lineTotal),
		})
	}

	quote := s.policy.Quote(subtotal)
	now := s.now().UTC()

	return models.Order{
		ID:                   primitive.NewObjectID(),
		User:                 req.UserID,
		Supplier:             supplier.ID,
		Items:                items,
		Subtotal:             pricing.Float(quote.Subtotal),
		Tax:                  pricing.Float(quote.Tax),
		DeliveryFee:          pricing.Float(quote.DeliveryFee),
		TotalAmount:          pricing.Float(quote.Total),
		Currency:             s.currency,
		Status:               models.OrderStatusPending,
		PaymentStatus:        models.PaymentStatusPending,
		PaymentMethod:        req.PaymentMethod,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: strings.TrimSpace(req.DeliveryInstructions),
		Notes:                strings.TrimSpace(req.Notes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func rejectReason(err error) string {
	if appErr, ok := apperr.As(err); ok {
		return strings.ReplaceAll(appErr.Kind.String(), " ", "_")
	}
	return "internal"
}

func (s *Service) load(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	order, err := s.store.FindOrder(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Order{}, apperr.NotFound("Order not found")
	}
	if err != nil {
		return models.Order{}, errors.Wrap(err, "find order")
	}
	return order, nil
}

// Cancel cancels a pending or confirmed order for its buyer or an admin,
// restores stock and refunds a captured payment.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id primitive.ObjectID) (models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if order.User != actor.ID && !actor.IsAdmin() {
		return models.Order{}, apperr.Forbidden("Not authorized to cancel this order")
	}
	return s.cancel(ctx, order)
}

func (s *Service) cancel(ctx context.Context, order models.Order) (models.Order, error) {
	if !models.Cancellable(order.Status) {
		return models.Order{}, apperr.InvalidState("Order cannot be cancelled at this stage")
	}

	var cancelled models.Order
	err := s.store.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, ok, err := s.store.TransitionOrder(txCtx, order.ID,
			[]string{models.OrderStatusPending, models.OrderStatusConfirmed},
			Update{Status: models.OrderStatusCancelled, UpdatedAt: s.now().UTC()})
		if err != nil {
			return errors.Wrap(err, "cancel order")
		}
		if !ok {
			return apperr.InvalidState("Order cannot be cancelled at this stage")
		}
		for _, item := range order.Items {
			if err := s.store.IncrementStock(txCtx, item.Product, item.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock for %s", item.Product.Hex())
			}
		}
		cancelled = updated
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	metrics.OrdersCancelled.Inc()
	log.Printf("[ORDER] [INFO] order %s cancelled, stock restored for %d items", order.ID.Hex(), len(order.Items))

	if cancelled.PaymentStatus == models.PaymentStatusPaid && cancelled.PaymentIntentID != "" && s.payments != nil {
		if err := s.payments.Refund(ctx, cancelled); err != nil {
			log.Printf("[ORDER] [ERROR] refund for order %s failed: %v", order.ID.Hex(), err)
		} else {
			cancelled.PaymentStatus = models.PaymentStatusRefunded
		}
	}

	return cancelled, nil
}

// StatusChange is a supplier-side update to an order.
type StatusChange struct {
	Status            string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// UpdateStatus moves an order forward along the fulfilment pipeline. Only the
// supplier's owner or an admin may do so. Cancelling goes through the same
// path as a buyer cancellation.
func (s *Service) UpdateStatus(ctx context.Context, actor models.Actor, id primitive.ObjectID, change StatusChange) (models.Order, error) {
	if !models.ValidOrderStatus(change.Status) {
		return models.Order{}, apperr.Validation("Invalid status %q", change.Status)
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.authorizeSupplier(ctx, actor, order); err != nil {
		return models.Order{}, err
	}

	if models.IsTerminal(order.Status) {
		return models.Order{}, apperr.InvalidState("Order is already %s", order.Status)
	}
	if change.Status == models.OrderStatusCancelled {
		return s.cancel(ctx, order)
	}
	if models.StatusRank(change.Status) < models.StatusRank(order.Status) {
		return models.Order{}, apperr.InvalidState("Order cannot move from %s back to %s", order.Status, change.Status)
	}

	now := s.now().UTC()
	upd := Update{
		Status:            change.Status,
		TrackingNumber:    strings.TrimSpace(change.TrackingNumber),
		EstimatedDelivery: change.EstimatedDelivery,
		UpdatedAt:         now,
	}
	if change.Status == models.OrderStatusDelivered {
		upd.ActualDelivery = &now
	}

	updated, ok, err := s.store.TransitionOrder(ctx, order.ID, []string{order.Status}, upd)
	if err != nil {
		return models.Order{}, errors.Wrap(err, "update order status")
	}
	if !ok {
		return models.Order{}, apperr.InvalidState("Order was modified by another request, reload and retry")
	}

	log.Printf("[ORDER] [INFO] order %s moved %s -> %s", order.ID.Hex(), order.Status, updated.Status)
	return updated, nil
}

func (s *Service) authorizeSupplier(ctx context.Context, actor models.Actor, order models.Order) error {
	if actor.IsAdmin() {
		return nil
	}
	supplier, err := s.store.FindSupplier(ctx, order.Supplier)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.Forbidden("Not authorized to update this order")
	}
	if err != nil {
		return errors.Wrap(err, "find supplier")
	}
	if supplier.Owner != actor.ID {
		return apperr.Forbidden("Not authorized to update this order")
	}
	return nil
}

// Get returns an order to its buyer, the supplier's owner or an admin.
func (s *Service) Get(ctx context.Context, actor models.Actor, id primitive.ObjectID) (models.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if order.User == actor.ID {
		return order, nil
	}
	if err := s.authorizeSupplier(ctx, actor, order); err != nil {
		return models.Order{}, apperr.Forbidden("Not authorized to view this order")
	}
	return order, nil
}

type TrackingSummary struct {
	ID                primitive.ObjectID `json:"id"`
	Status            string             `json:"status"`
	TotalAmount       float64            `json:"totalAmount"`
	Currency          string             `json:"currency"`
	CreatedAt         time.Time          `json:"createdAt"`
	EstimatedDelivery *time.Time         `json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time         `json:"actualDelivery,omitempty"`
	TrackingNumber    string             `json:"trackingNumber,omitempty"`
}

type SupplierContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type Tracking struct {
	Order    TrackingSummary  `json:"order"`
	Supplier *SupplierContact `json:"supplier,omitempty"`
	Timeline []TimelineEntry  `json:"timeline"`
}

// Track is the public view of an order. It omits payment references.
func (s *Service) Track(ctx context.Context, id primitive.ObjectID) (Tracking, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return Tracking{}, err
	}

	tracking := Tracking{
		Order: TrackingSummary{
			ID:                order.ID,
			Status:            order.Status,
			TotalAmount:       order.TotalAmount,
			Currency:          order.Currency,
			CreatedAt:         order.CreatedAt,
			EstimatedDelivery: order.EstimatedDelivery,
			ActualDelivery:    order.ActualDelivery,
			TrackingNumber:    order.TrackingNumber,
		},
		Timeline: Timeline(order),
	}

	supplier, err := s.store.FindSupplier(ctx, order.Supplier)
	switch {
	case err == nil:
		tracking.Supplier = &SupplierContact{Name: supplier.Name, Phone: supplier.Phone, Email: supplier.Email}
	case !errors.Is(err, models.ErrNotFound):
		return Tracking{}, errors.Wrap(err, "find supplier")
	}

	return tracking, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]models.Order, int64, error) {
	if filter.Status != "" && !models.ValidOrderStatus(filter.Status) {
		return nil, 0, apperr.Validation("Invalid status %q", filter.Status)
	}
	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return orders, total, nil
}

func (s *Service) Stats(ctx context.Context, userID primitive.ObjectID) (Stats, error) {
	stats, err := s.store.OrderStats(ctx, userID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "order stats")
	}
	if stats.StatusBreakdown == nil {
		stats.StatusBreakdown = []StatusCount{}
	}
	return stats, nil
}
