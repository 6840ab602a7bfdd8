// Package memstore is an in-memory implementation of the order, review and
// payment stores. Transactions are serialized and roll back on error, which
// is enough to exercise the workflows without a replica set.
//
// A rollback restores whole-collection snapshots taken when the transaction
// began. Writes made outside WithTransaction while a transaction is open are
// discarded if that transaction fails, so tests must not mix the two.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/models"
	"supplyhub/internal/orders"
	"supplyhub/internal/payment"
	"supplyhub/internal/reviews"
)

var (
	_ orders.Store  = (*Store)(nil)
	_ reviews.Store = (*Store)(nil)
	_ payment.Store = (*Store)(nil)
)

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	suppliers map[primitive.ObjectID]models.Supplier
	products  map[primitive.ObjectID]models.Product
	orders    map[primitive.ObjectID]models.Order
	reviews   map[primitive.ObjectID]models.Review
}

func New() *Store {
	return &Store{
		suppliers: make(map[primitive.ObjectID]models.Supplier),
		products:  make(map[primitive.ObjectID]models.Product),
		orders:    make(map[primitive.ObjectID]models.Order),
		reviews:   make(map[primitive.ObjectID]models.Review),
	}
}

type snapshot struct {
	suppliers map[primitive.ObjectID]models.Supplier
	products  map[primitive.ObjectID]models.Product
	orders    map[primitive.ObjectID]models.Order
	reviews   map[primitive.ObjectID]models.Review
}

func copyMap[V any](m map[primitive.ObjectID]V) map[primitive.ObjectID]V {
	out := make(map[primitive.ObjectID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		suppliers: copyMap(s.suppliers),
		products:  copyMap(s.products),
		orders:    copyMap(s.orders),
		reviews:   copyMap(s.reviews),
	}
}

// restore replaces every collection with its snapshot, including changes made
// by callers that were not part of the transaction.
func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers = snap.suppliers
	s.products = snap.products
	s.orders = snap.orders
	s.reviews = snap.reviews
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Seeding and inspection helpers for tests.

func (s *Store) PutSupplier(sup models.Supplier) models.Supplier {
	if sup.ID.IsZero() {
		sup.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[sup.ID] = sup
	return sup
}

func (s *Store) PutProduct(p models.Product) models.Product {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return p
}

func (s *Store) PutOrder(o models.Order) models.Order {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return o
}

func (s *Store) Supplier(id primitive.ObjectID) models.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppliers[id]
}

func (s *Store) Product(id primitive.ObjectID) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *Store) Order(id primitive.ObjectID) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) FindSupplier(ctx context.Context, id primitive.ObjectID) (models.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return models.Supplier{}, models.ErrNotFound
	}
	return sup, nil
}

// OwnedSupplierIDs returns the ids of suppliers owned by owner, sorted by hex.
func (s *Store) OwnedSupplierIDs(ctx context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []primitive.ObjectID
	for id, sup := range s.suppliers {
		if sup.Owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
	return ids, nil
}

func (s *Store) FindProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, models.ErrNotFound
	}
	return p, nil
}

func (s *Store) DecrementStock(ctx context.Context, productID primitive.ObjectID, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	s.products[productID] = p
	return true, nil
}

func (s *Store) IncrementStock(ctx context.Context, productID primitive.ObjectID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.StockQuantity += qty
		s.products[productID] = p
	}
	return nil
}

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return models.ErrDuplicate
	}
	s.orders[order.ID] = *order
	return nil
}

func (s *Store) FindOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, models.ErrNotFound
	}
	return o, nil
}

func in(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Store) TransitionOrder(ctx context.Context, id primitive.ObjectID, from []string, upd orders.Update) (models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, false, models.ErrNotFound
	}
	if !in(o.Status, from) {
		return o, false, nil
	}
	if upd.Status != "" {
		o.Status = upd.Status
	}
	if upd.TrackingNumber != "" {
		o.TrackingNumber = upd.TrackingNumber
	}
	if upd.EstimatedDelivery != nil {
		o.EstimatedDelivery = upd.EstimatedDelivery
	}
	if upd.ActualDelivery != nil {
		o.ActualDelivery = upd.ActualDelivery
	}
	o.UpdatedAt = upd.UpdatedAt
	s.orders[id] = o
	return o, true, nil
}

func page[T any](items []T, skip int64, limit int) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Store) ListOrders(ctx context.Context, filter orders.Filter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Order
	for _, o := range s.orders {
		if filter.User != nil && o.User != *filter.User {
			continue
		}
		if len(filter.Suppliers) > 0 && !containsID(filter.Suppliers, o.Supplier) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, filter.Skip(), filter.Limit), int64(len(matched)), nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Store) OrderStats(ctx context.Context, userID primitive.ObjectID) (orders.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats orders.Stats
	counts := map[string]int{}
	for _, o := range s.orders {
		if o.User != userID {
			continue
		}
		stats.Overview.TotalOrders++
		stats.Overview.TotalSpent += o.TotalAmount
		counts[o.Status]++
	}
	if stats.Overview.TotalOrders > 0 {
		stats.Overview.AvgOrderValue = stats.Overview.TotalSpent / float64(stats.Overview.TotalOrders)
	}
	for status, n := range counts {
		stats.StatusBreakdown = append(stats.StatusBreakdown, orders.StatusCount{Status: status, Count: n})
	}
	sort.Slice(stats.StatusBreakdown, func(i, j int) bool {
		return stats.StatusBreakdown[i].Status < stats.StatusBreakdown[j].Status
	})
	return stats, nil
}

func (s *Store) FindOrderByPaymentIntent(ctx context.Context, intentID string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentIntentID == intentID {
			return o, nil
		}
	}
	return models.Order{}, models.ErrNotFound
}

func (s *Store) RecordPaymentAttempt(ctx context.Context, id primitive.ObjectID, intentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	o.PaymentAttempts++
	if intentID != "" {
		o.PaymentIntentID = intentID
	}
	s.orders[id] = o
	return o.PaymentAttempts, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, from []string, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if !in(o.PaymentStatus, from) {
		return false, nil
	}
	o.PaymentStatus = to
	s.orders[id] = o
	return true, nil
}

func (s *Store) PendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentMethod == models.PaymentMethodCard &&
			o.PaymentStatus == models.PaymentStatusPending &&
			o.PaymentIntentID == "" &&
			o.Status != models.OrderStatusCancelled &&
			o.CreatedAt.Before(createdBefore) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, 0, limit), nil
}

func (s *Store) FindReview(ctx context.Context, id primitive.ObjectID) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return models.Review{}, models.ErrNotFound
	}
	return r, nil
}

func (s *Store) FindUserReview(ctx context.Context, userID, supplierID primitive.ObjectID) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.User == userID && r.Supplier == supplierID {
			return r, nil
		}
	}
	return models.Review{}, models.ErrNotFound
}

func (s *Store) InsertReview(ctx context.Context, review *models.Review) error {
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reviews {
		if r.User == review.User && r.Supplier == review.Supplier {
			return models.ErrDuplicate
		}
	}
	s.reviews[review.ID] = *review
	return nil
}

func (s *Store) UpdateReview(ctx context.Context, id primitive.ObjectID, rating int, comment string, updatedAt time.Time) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return models.Review{}, models.ErrNotFound
	}
	r.Rating = rating
	r.Comment = comment
	r.UpdatedAt = updatedAt
	s.reviews[id] = r
	return r, nil
}

func (s *Store) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (s *Store) IncrementHelpful(ctx context.Context, id primitive.ObjectID) (models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return models.Review{}, models.ErrNotFound
	}
	r.HelpfulCount++
	s.reviews[id] = r
	return r, nil
}

func (s *Store) RatingSummary(ctx context.Context, supplierID primitive.ObjectID) (models.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum, count int
	for _, r := range s.reviews {
		if r.Supplier == supplierID {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: float64(sum) / float64(count), Count: count}, nil
}

func (s *Store) SetSupplierRating(ctx context.Context, supplierID primitive.ObjectID, rating float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup, ok := s.suppliers[supplierID]
	if !ok {
		return models.ErrNotFound
	}
	sup.Rating = rating
	sup.ReviewCount = count
	s.suppliers[supplierID] = sup
	return nil
}

func (s *Store) RatingDistribution(ctx context.Context, supplierID primitive.ObjectID) ([]reviews.RatingBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[int]int{}
	for _, r := range s.reviews {
		if r.Supplier == supplierID {
			counts[r.Rating]++
		}
	}
	out := make([]reviews.RatingBucket, 0, len(counts))
	for rating, n := range counts {
		out = append(out, reviews.RatingBucket{Rating: rating, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out, nil
}

func (s *Store) ListReviews(ctx context.Context, filter reviews.Filter) ([]models.Review, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Review
	for _, r := range s.reviews {
		if filter.Supplier != nil && r.Supplier != *filter.Supplier {
			continue
		}
		if filter.User != nil && r.User != *filter.User {
			continue
		}
		if filter.Rating != 0 && r.Rating != filter.Rating {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, filter.Skip(), filter.Limit), int64(len(matched)), nil
}

func (s *Store) HasDeliveredOrder(ctx context.Context, userID, supplierID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.User == userID && o.Supplier == supplierID && o.Status == models.OrderStatusDelivered {
			return true, nil
		}
	}
	return false, nil
}
