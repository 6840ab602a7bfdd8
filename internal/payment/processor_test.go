package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/memstore"
	"supplyhub/internal/models"
	"supplyhub/internal/payment"
)

type flakyGateway struct {
	mu       sync.Mutex
	failures int
	calls    int
	refunds  []string
}

func (g *flakyGateway) Authorize(ctx context.Context, req payment.AuthorizeRequest) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failures > 0 {
		g.failures--
		return payment.Intent{}, errors.New("gateway timeout")
	}
	return payment.Intent{ID: "pi_" + req.OrderID, ClientSecret: "secret"}, nil
}

func (g *flakyGateway) Refund(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, intentID)
	return nil
}

func cardOrder(store *memstore.Store, created time.Time) models.Order {
	return store.PutOrder(models.Order{
		User:          primitive.NewObjectID(),
		Supplier:      primitive.NewObjectID(),
		TotalAmount:   1250.5,
		Currency:      "INR",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCard,
		CreatedAt:     created,
	})
}

func TestAuthorizeRecordsIntent(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{}
	p := payment.NewProcessor(gw, store, payment.Config{})

	order := cardOrder(store, time.Now())
	intent, err := p.Authorize(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "pi_"+order.ID.Hex(), intent.ID)

	stored := store.Order(order.ID)
	assert.Equal(t, intent.ID, stored.PaymentIntentID)
	assert.Equal(t, 1, stored.PaymentAttempts)
}

func TestFailedAuthorizeIsRetriedByRun(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{failures: 1}
	p := payment.NewProcessor(gw, store, payment.Config{ReconcileInterval: time.Hour})

	order := cardOrder(store, time.Now())
	_, err := p.Authorize(context.Background(), order)
	require.Error(t, err)
	assert.Empty(t, store.Order(order.ID).PaymentIntentID)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return store.Order(order.ID).PaymentIntentID != ""
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	stored := store.Order(order.ID)
	assert.Equal(t, 2, stored.PaymentAttempts)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}

func TestAttemptsExhaustedMarksFailed(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{failures: 10}
	p := payment.NewProcessor(gw, store, payment.Config{MaxAttempts: 2})

	order := cardOrder(store, time.Now())
	_, err := p.Authorize(context.Background(), order)
	require.Error(t, err)
	_, err = p.Authorize(context.Background(), order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, payment.ErrAttemptsExhausted))
	assert.Equal(t, models.PaymentStatusFailed, store.Order(order.ID).PaymentStatus)
}

func TestReconcileAuthorizesStuckOrders(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{}
	p := payment.NewProcessor(gw, store, payment.Config{ReconcileInterval: time.Minute})

	stale := cardOrder(store, time.Now().Add(-time.Hour))
	fresh := cardOrder(store, time.Now())
	cancelled := cardOrder(store, time.Now().Add(-time.Hour))
	_, _, err := store.TransitionOrder(context.Background(), cancelled.ID, []string{models.OrderStatusPending}, cancelUpdate())
	require.NoError(t, err)

	n, err := p.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotEmpty(t, store.Order(stale.ID).PaymentIntentID)
	assert.Empty(t, store.Order(fresh.ID).PaymentIntentID)
	assert.Empty(t, store.Order(cancelled.ID).PaymentIntentID)
}

func TestHandleEvent(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{}
	p := payment.NewProcessor(gw, store, payment.Config{})
	ctx := context.Background()

	order := cardOrder(store, time.Now())
	intent, err := p.Authorize(ctx, order)
	require.NoError(t, err)

	var ev payment.Event
	ev.Type = payment.EventPaymentSucceeded
	ev.Data.Object.ID = intent.ID
	require.NoError(t, p.HandleEvent(ctx, ev))
	assert.Equal(t, models.PaymentStatusPaid, store.Order(order.ID).PaymentStatus)

	ev.Data.Object.ID = "pi_unknown"
	err = p.HandleEvent(ctx, ev)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	other := cardOrder(store, time.Now())
	otherIntent, err := p.Authorize(ctx, other)
	require.NoError(t, err)
	ev.Type = payment.EventPaymentFailed
	ev.Data.Object.ID = otherIntent.ID
	require.NoError(t, p.HandleEvent(ctx, ev))
	assert.Equal(t, models.PaymentStatusFailed, store.Order(other.ID).PaymentStatus)
}

func TestLateSuccessOnCancelledOrderIsRefunded(t *testing.T) {
	store := memstore.New()
	gw := &flakyGateway{}
	p := payment.NewProcessor(gw, store, payment.Config{})
	ctx := context.Background()

	order := cardOrder(store, time.Now())
	intent, err := p.Authorize(ctx, order)
	require.NoError(t, err)
	_, _, err = store.TransitionOrder(ctx, order.ID, []string{models.OrderStatusPending}, cancelUpdate())
	require.NoError(t, err)

	var ev payment.Event
	ev.Type = payment.EventPaymentSucceeded
	ev.Data.Object.ID = intent.ID
	require.NoError(t, p.HandleEvent(ctx, ev))

	assert.Equal(t, []string{intent.ID}, gw.refunds)
	assert.Equal(t, models.PaymentStatusRefunded, store.Order(order.ID).PaymentStatus)
}

func TestRefundRequiresCapturedPayment(t *testing.T) {
	store := memstore.New()
	p := payment.NewProcessor(&flakyGateway{}, store, payment.Config{})

	order := cardOrder(store, time.Now())
	err := p.Refund(context.Background(), order)
	assert.True(t, apperr.Is(err, apperr.KindInvalidState))
}
