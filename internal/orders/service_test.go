package orders_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/memstore"
	"supplyhub/internal/models"
	"supplyhub/internal/orders"
	"supplyhub/internal/payment"
	"supplyhub/internal/pricing"
)

type fakePayments struct {
	mu           sync.Mutex
	authorizeErr error
	authorized   []primitive.ObjectID
	refunded     []primitive.ObjectID
}

func (f *fakePayments) Authorize(ctx context.Context, order models.Order) (*payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	f.authorized = append(f.authorized, order.ID)
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

func (f *fakePayments) Refund(ctx context.Context, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunded = append(f.refunded, order.ID)
	return nil
}

type fixture struct {
	store    *memstore.Store
	payments *fakePayments
	svc      *orders.Service
	owner    models.Actor
	buyer    models.Actor
	supplier models.Supplier
	tomatoes models.Product
	onions   models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	payments := &fakePayments{}
	f := &fixture{
		store:    store,
		payments: payments,
		svc:      orders.NewService(store, payments, pricing.DefaultPolicy(), "INR"),
		owner:    models.Actor{ID: primitive.NewObjectID(), Role: models.RoleSupplier},
		buyer:    models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer},
	}
	f.supplier = store.PutSupplier(models.Supplier{Name: "Fresh Veggie Hub", Phone: "9876543210", Email: "hub@example.com", Owner: f.owner.ID})
	f.tomatoes = store.PutProduct(models.Product{
		Name: "Fresh Tomatoes", Category: "Vegetables", Unit: "kg", Price: 80,
		Supplier: f.supplier.ID, IsAvailable: true, MinimumOrderQuantity: 1, StockQuantity: 200,
	})
	f.onions = store.PutProduct(models.Product{
		Name: "Red Onions", Category: "Vegetables", Unit: "kg", Price: 35,
		Supplier: f.supplier.ID, IsAvailable: true, MinimumOrderQuantity: 2, StockQuantity: 50,
	})
	return f
}

func (f *fixture) request(method string, lines ...orders.LineRequest) orders.PlaceRequest {
	return orders.PlaceRequest{
		UserID:     f.buyer.ID,
		SupplierID: f.supplier.ID,
		Items:      lines,
		DeliveryAddress: models.DeliveryAddress{
			Street: "12 Market Road", City: "Chennai", State: "Tamil Nadu", ZipCode: "600001", Phone: "9000000000",
		},
		PaymentMethod: method,
	}
}

func line(p models.Product, qty int) orders.LineRequest {
	return orders.LineRequest{ProductID: p.ID, Quantity: qty}
}

func TestPlaceTomatoOnionScenario(t *testing.T) {
	f := newFixture(t)

	placed, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodCash, line(f.tomatoes, 10), line(f.onions, 5)))
	require.NoError(t, err)

	order := placed.Order
	assert.Equal(t, 975.0, order.Subtotal)
	assert.Equal(t, 175.5, order.Tax)
	assert.Equal(t, 100.0, order.DeliveryFee)
	assert.Equal(t, 1250.5, order.TotalAmount)
	assert.Equal(t, order.Subtotal+order.Tax+order.DeliveryFee, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Nil(t, placed.Payment)

	require.Len(t, order.Items, 2)
	assert.Equal(t, 80.0, order.Items[0].UnitPrice)
	assert.Equal(t, 800.0, order.Items[0].TotalPrice)
	assert.Equal(t, 175.0, order.Items[1].TotalPrice)

	assert.Equal(t, 190, f.store.Product(f.tomatoes.ID).StockQuantity)
	assert.Equal(t, 45, f.store.Product(f.onions.ID).StockQuantity)
	assert.Equal(t, order.ID, f.store.Order(order.ID).ID)
}

func TestPlaceFreeDeliveryAboveThreshold(t *testing.T) {
	f := newFixture(t)

	placed, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodUPI, line(f.tomatoes, 13)))
	require.NoError(t, err)
	assert.Equal(t, 1040.0, placed.Order.Subtotal)
	assert.Zero(t, placed.Order.DeliveryFee)
	assert.Equal(t, 1227.2, placed.Order.TotalAmount)
}

func TestPlaceRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherSupplier := f.store.PutSupplier(models.Supplier{Name: "Spice World", Owner: primitive.NewObjectID()})
	foreign := f.store.PutProduct(models.Product{Name: "Cumin", Price: 300, Supplier: otherSupplier.ID, IsAvailable: true, StockQuantity: 10})
	hidden := f.store.PutProduct(models.Product{Name: "Paneer", Price: 320, Supplier: f.supplier.ID, IsAvailable: false, StockQuantity: 10})

	cases := []struct {
		name string
		req  orders.PlaceRequest
		kind apperr.Kind
	}{
		{"unknown supplier", func() orders.PlaceRequest {
			r := f.request(models.PaymentMethodCash, line(f.tomatoes, 1))
			r.SupplierID = primitive.NewObjectID()
			return r
		}(), apperr.KindNotFound},
		{"unknown product", f.request(models.PaymentMethodCash, orders.LineRequest{ProductID: primitive.NewObjectID(), Quantity: 1}), apperr.KindNotFound},
		{"other supplier's product", f.request(models.PaymentMethodCash, line(foreign, 1)), apperr.KindInvalidState},
		{"unavailable", f.request(models.PaymentMethodCash, line(hidden, 1)), apperr.KindInvalidState},
		{"below minimum quantity", f.request(models.PaymentMethodCash, line(f.onions, 1)), apperr.KindInvalidState},
		{"insufficient stock", f.request(models.PaymentMethodCash, line(f.tomatoes, 201)), apperr.KindInsufficientStock},
		{"zero quantity", f.request(models.PaymentMethodCash, line(f.tomatoes, 0)), apperr.KindValidation},
		{"no items", f.request(models.PaymentMethodCash), apperr.KindValidation},
		{"bad payment method", f.request("Barter", line(f.tomatoes, 1)), apperr.KindValidation},
		{"missing address", func() orders.PlaceRequest {
			r := f.request(models.PaymentMethodCash, line(f.tomatoes, 1))
			r.DeliveryAddress.ZipCode = " "
			return r
		}(), apperr.KindValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Place(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, tc.kind), "got %v", err)
		})
	}

	assert.Zero(t, f.store.OrderCount())
	assert.Equal(t, 200, f.store.Product(f.tomatoes.ID).StockQuantity)
}

func TestPlaceRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodCash, line(f.tomatoes, 10), line(f.onions, 51)))
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInsufficientStock, appErr.Kind)
	assert.Contains(t, appErr.Message, "Red Onions")
	assert.Equal(t, 51, appErr.Details["requested"])

	assert.Equal(t, 200, f.store.Product(f.tomatoes.ID).StockQuantity)
	assert.Equal(t, 50, f.store.Product(f.onions.ID).StockQuantity)
	assert.Zero(t, f.store.OrderCount())
}

// raceLosingStore lets another checkout drain a product between the stock
// check and the conditional decrement.
type raceLosingStore struct {
	*memstore.Store
	lose      primitive.ObjectID
	remaining int
}

func (s *raceLosingStore) DecrementStock(ctx context.Context, productID primitive.ObjectID, qty int) (bool, error) {
	if productID != s.lose {
		return s.Store.DecrementStock(ctx, productID, qty)
	}
	p := s.Store.Product(productID)
	p.StockQuantity = s.remaining
	s.Store.PutProduct(p)
	return false, nil
}

func TestPlaceAbortsWhenConditionalDecrementLoses(t *testing.T) {
	f := newFixture(t)
	store := &raceLosingStore{Store: f.store, lose: f.onions.ID, remaining: 3}
	svc := orders.NewService(store, f.payments, pricing.DefaultPolicy(), "INR")

	_, err := svc.Place(context.Background(), f.request(models.PaymentMethodCash, line(f.tomatoes, 10), line(f.onions, 5)))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Insufficient stock for Red Onions", appErr.Message)
	assert.Equal(t, 3, appErr.Details["available"])
	assert.Equal(t, 5, appErr.Details["requested"])

	assert.Equal(t, 200, f.store.Product(f.tomatoes.ID).StockQuantity)
	assert.Zero(t, f.store.OrderCount())
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	f := newFixture(t)
	scarce := f.store.PutProduct(models.Product{
		Name: "Saffron", Price: 500, Supplier: f.supplier.ID, IsAvailable: true, StockQuantity: 10,
	})

	const buyers = 25
	var succeeded, outOfStock int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodCash, line(scarce, 1)))
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case apperr.Is(err, apperr.KindInsufficientStock):
				atomic.AddInt32(&outOfStock, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded)
	assert.Equal(t, int32(buyers-10), outOfStock)
	assert.Zero(t, f.store.Product(scarce.ID).StockQuantity)
	assert.Equal(t, 10, f.store.OrderCount())
}

func TestCardPaymentHandle(t *testing.T) {
	f := newFixture(t)

	placed, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodCard, line(f.tomatoes, 2)))
	require.NoError(t, err)
	require.NotNil(t, placed.Payment)
	assert.Equal(t, "pi_test", placed.Payment.ID)
	assert.Equal(t, "pi_test", placed.Order.PaymentIntentID)
	assert.Equal(t, []primitive.ObjectID{placed.Order.ID}, f.payments.authorized)
}

func TestCardPaymentFailureDoesNotBlockOrder(t *testing.T) {
	f := newFixture(t)
	f.payments.authorizeErr = errors.New("gateway unavailable")

	placed, err := f.svc.Place(context.Background(), f.request(models.PaymentMethodCard, line(f.tomatoes, 2)))
	require.NoError(t, err)
	assert.Nil(t, placed.Payment)

	stored := f.store.Order(placed.Order.ID)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, 198, f.store.Product(f.tomatoes.ID).StockQuantity)
}

func TestCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 10), line(f.onions, 5)))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.buyer, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 200, f.store.Product(f.tomatoes.ID).StockQuantity)
	assert.Equal(t, 50, f.store.Product(f.onions.ID).StockQuantity)
	assert.Empty(t, f.payments.refunded)

	_, err = f.svc.Cancel(ctx, f.buyer, placed.Order.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, 200, f.store.Product(f.tomatoes.ID).StockQuantity)
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 1)))
	require.NoError(t, err)

	stranger := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}
	_, err = f.svc.Cancel(ctx, stranger, placed.Order.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	admin := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	_, err = f.svc.Cancel(ctx, admin, placed.Order.ID)
	assert.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.buyer, primitive.NewObjectID())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCancelRefundsPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCard, line(f.tomatoes, 1)))
	require.NoError(t, err)
	_, err = f.store.SetPaymentStatus(ctx, placed.Order.ID, []string{models.PaymentStatusPending}, models.PaymentStatusPaid)
	require.NoError(t, err)
	_, err = f.store.RecordPaymentAttempt(ctx, placed.Order.ID, "pi_test")
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.buyer, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
	assert.Equal(t, []primitive.ObjectID{placed.Order.ID}, f.payments.refunded)
}

func TestCancelNotAllowedOnceShipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 3)))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.owner, placed.Order.ID, orders.StatusChange{Status: models.OrderStatusShipped, TrackingNumber: "TRK1"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.buyer, placed.Order.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
	assert.Equal(t, 197, f.store.Product(f.tomatoes.ID).StockQuantity)
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 4)))
	require.NoError(t, err)
	id := placed.Order.ID

	_, err = f.svc.UpdateStatus(ctx, f.buyer, id, orders.StatusChange{Status: models.OrderStatusConfirmed})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.UpdateStatus(ctx, f.owner, id, orders.StatusChange{Status: "teleported"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := f.svc.UpdateStatus(ctx, f.owner, id, orders.StatusChange{Status: models.OrderStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, f.owner, id, orders.StatusChange{Status: models.OrderStatusConfirmed})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))

	delivered, err := f.svc.UpdateStatus(ctx, f.owner, id, orders.StatusChange{Status: models.OrderStatusDelivered})
	require.NoError(t, err)
	require.NotNil(t, delivered.ActualDelivery)

	_, err = f.svc.UpdateStatus(ctx, f.owner, id, orders.StatusChange{Status: models.OrderStatusShipped})
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestSupplierCancellationRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.onions, 10)))
	require.NoError(t, err)
	assert.Equal(t, 40, f.store.Product(f.onions.ID).StockQuantity)

	cancelled, err := f.svc.UpdateStatus(ctx, f.owner, placed.Order.ID, orders.StatusChange{Status: models.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 50, f.store.Product(f.onions.ID).StockQuantity)
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 1)))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.buyer, placed.Order.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.owner, placed.Order.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, models.Actor{ID: primitive.NewObjectID(), Role: models.RoleBuyer}, placed.Order.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestTrackHidesPaymentAndBuildsTimeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCard, line(f.tomatoes, 1)))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, f.owner, placed.Order.ID, orders.StatusChange{Status: models.OrderStatusShipped, TrackingNumber: "TRK-42"})
	require.NoError(t, err)

	tracking, err := f.svc.Track(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRK-42", tracking.Order.TrackingNumber)
	require.NotNil(t, tracking.Supplier)
	assert.Equal(t, "Fresh Veggie Hub", tracking.Supplier.Name)
	require.Len(t, tracking.Timeline, 4)
	assert.Equal(t, "Order shipped with tracking: TRK-42", tracking.Timeline[3].Description)
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 1)))
		require.NoError(t, err)
	}
	placed, err := f.svc.Place(ctx, f.request(models.PaymentMethodCash, line(f.tomatoes, 1)))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.buyer, placed.Order.ID)
	require.NoError(t, err)

	list, total, err := f.svc.List(ctx, orders.Filter{User: &f.buyer.ID, Status: models.OrderStatusPending, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(3), total)

	_, _, err = f.svc.List(ctx, orders.Filter{User: &f.buyer.ID, Status: "bogus"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	stats, err := f.svc.Stats(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Overview.TotalOrders)
	assert.InDelta(t, 4*194.4, stats.Overview.TotalSpent, 0.001)
	assert.InDelta(t, 194.4, stats.Overview.AvgOrderValue, 0.001)
	assert.Len(t, stats.StatusBreakdown, 2)
}
