package payment

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/metrics"
	"supplyhub/internal/models"
	"supplyhub/internal/pricing"
)

// ErrAttemptsExhausted is returned once an order has used all of its
// authorization attempts. The order is marked failed.
var ErrAttemptsExhausted = errors.New("payment attempts exhausted")

// Store is the order persistence the processor needs.
type Store interface {
	FindOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error)
	FindOrderByPaymentIntent(ctx context.Context, intentID string) (models.Order, error)
	// RecordPaymentAttempt increments paymentAttempts, stores intentID when it
	// is non-empty, and returns the new attempt count.
	RecordPaymentAttempt(ctx context.Context, id primitive.ObjectID, intentID string) (int, error)
	// SetPaymentStatus moves paymentStatus to `to` only if it is currently one
	// of `from`. It reports whether the update applied.
	SetPaymentStatus(ctx context.Context, id primitive.ObjectID, from []string, to string) (bool, error)
	// PendingPayments lists live card orders still waiting for an intent.
	PendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type Config struct {
	Currency          string
	MaxAttempts       int
	CallTimeout       time.Duration
	ReconcileInterval time.Duration
	QueueSize         int
	SweepBatch        int
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 50
	}
	return c
}

// Processor authorizes card orders against the gateway. The first attempt is
// made inline by the caller; failures go to a retry queue drained by Run,
// which also sweeps for pending orders the queue lost.
type Processor struct {
	gateway Gateway
	store   Store
	cfg     Config
	queue   chan primitive.ObjectID
	now     func() time.Time
}

func NewProcessor(gateway Gateway, store Store, cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		gateway: gateway,
		store:   store,
		cfg:     cfg,
		queue:   make(chan primitive.ObjectID, cfg.QueueSize),
		now:     time.Now,
	}
}

// Authorize makes one authorization attempt for the order and queues a retry
// if it fails.
func (p *Processor) Authorize(ctx context.Context, order models.Order) (*Intent, error) {
	intent, err := p.attempt(ctx, order)
	if err != nil {
		if !errors.Is(err, ErrAttemptsExhausted) {
			p.Enqueue(order.ID)
		}
		return nil, err
	}
	return intent, nil
}

func (p *Processor) attempt(ctx context.Context, order models.Order) (*Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	intent, err := p.gateway.Authorize(callCtx, AuthorizeRequest{
		OrderID:    order.ID.Hex(),
		UserID:     order.User.Hex(),
		SupplierID: order.Supplier.Hex(),
		Amount:     pricing.MinorUnits(order.TotalAmount),
		Currency:   p.currency(order),
	})
	if err != nil {
		metrics.PaymentAttempts.WithLabelValues("authorize", "error").Inc()
		return nil, p.recordFailure(ctx, order, err)
	}

	metrics.PaymentAttempts.WithLabelValues("authorize", "ok").Inc()
	if _, err := p.store.RecordPaymentAttempt(ctx, order.ID, intent.ID); err != nil {
		// The gateway holds the intent; the idempotency key returns it again
		// on the next attempt.
		return nil, errors.Wrapf(err, "record payment intent for order %s", order.ID.Hex())
	}

	log.Printf("[PAYMENT] [INFO] order %s authorized: intent=%s", order.ID.Hex(), intent.ID)
	return &intent, nil
}

func (p *Processor) recordFailure(ctx context.Context, order models.Order, cause error) error {
	attempts, err := p.store.RecordPaymentAttempt(ctx, order.ID, "")
	if err != nil {
		log.Printf("[PAYMENT] [ERROR] record attempt for order %s: %v", order.ID.Hex(), err)
		return errors.Wrap(cause, "authorize payment")
	}

	if attempts >= p.cfg.MaxAttempts {
		if _, err := p.store.SetPaymentStatus(ctx, order.ID, []string{models.PaymentStatusPending}, models.PaymentStatusFailed); err != nil {
			log.Printf("[PAYMENT] [ERROR] mark order %s failed: %v", order.ID.Hex(), err)
		}
		log.Printf("[PAYMENT] [WARN] order %s payment failed after %d attempts: %v", order.ID.Hex(), attempts, cause)
		return errors.Mark(errors.Wrapf(cause, "authorize payment (attempt %d)", attempts), ErrAttemptsExhausted)
	}

	return errors.Wrapf(cause, "authorize payment (attempt %d)", attempts)
}

func (p *Processor) currency(order models.Order) string {
	if order.Currency != "" {
		return order.Currency
	}
	return p.cfg.Currency
}

// Enqueue schedules a retry without blocking. A full queue drops the id; the
// reconciliation sweep picks the order up later.
func (p *Processor) Enqueue(id primitive.ObjectID) {
	select {
	case p.queue <- id:
		metrics.PaymentQueueDepth.Inc()
	default:
		log.Printf("[PAYMENT] [WARN] retry queue full, order %s left for reconciliation", id.Hex())
	}
}

// Run drains the retry queue and runs the reconciliation sweep until ctx is
// cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.ReconcileInterval)
	defer ticker.Stop()

	log.Printf("[PAYMENT] [INFO] processor started: sweep every %s", p.cfg.ReconcileInterval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[PAYMENT] [INFO] processor stopped")
			return nil
		case id := <-p.queue:
			metrics.PaymentQueueDepth.Dec()
			if err := p.retry(ctx, id); err != nil {
				log.Printf("[PAYMENT] [WARN] retry for order %s: %v", id.Hex(), err)
			}
		case <-ticker.C:
			if _, err := p.Reconcile(ctx); err != nil {
				log.Printf("[PAYMENT] [ERROR] reconciliation sweep: %v", err)
			}
		}
	}
}

// retry does not re-enqueue on failure; the next sweep will try again, which
// spaces attempts out by the sweep interval.
func (p *Processor) retry(ctx context.Context, id primitive.ObjectID) error {
	order, err := p.store.FindOrder(ctx, id)
	if err != nil {
		return errors.Wrap(err, "load order")
	}
	if !needsAuthorization(order) {
		return nil
	}
	_, err = p.attempt(ctx, order)
	return err
}

func needsAuthorization(order models.Order) bool {
	return order.PaymentMethod == models.PaymentMethodCard &&
		order.PaymentStatus == models.PaymentStatusPending &&
		order.PaymentIntentID == "" &&
		order.Status != models.OrderStatusCancelled
}

// Reconcile retries authorization for card orders that have been pending for
// at least one sweep interval. It returns how many were authorized.
func (p *Processor) Reconcile(ctx context.Context) (int, error) {
	orders, err := p.store.PendingPayments(ctx, p.now().Add(-p.cfg.ReconcileInterval), p.cfg.SweepBatch)
	if err != nil {
		return 0, errors.Wrap(err, "list pending payments")
	}

	authorized := 0
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		if !needsAuthorization(order) {
			continue
		}
		if _, err := p.attempt(ctx, order); err != nil {
			log.Printf("[PAYMENT] [WARN] reconcile order %s: %v", order.ID.Hex(), err)
			continue
		}
		authorized++
	}

	if len(orders) > 0 {
		log.Printf("[PAYMENT] [INFO] reconciliation: %d pending, %d authorized", len(orders), authorized)
	}
	return authorized, nil
}

// HandleEvent applies a gateway webhook to the order that owns the intent.
func (p *Processor) HandleEvent(ctx context.Context, event Event) error {
	intentID := event.IntentID()
	if intentID == "" {
		return apperr.Validation("Event has no payment intent")
	}

	order, err := p.store.FindOrderByPaymentIntent(ctx, intentID)
	if errors.Is(err, models.ErrNotFound) {
		return apperr.NotFound("No order for payment intent %s", intentID)
	}
	if err != nil {
		return errors.Wrap(err, "find order by intent")
	}

	switch event.Type {
	case EventPaymentSucceeded:
		applied, err := p.store.SetPaymentStatus(ctx, order.ID,
			[]string{models.PaymentStatusPending, models.PaymentStatusFailed}, models.PaymentStatusPaid)
		if err != nil {
			return errors.Wrap(err, "mark order paid")
		}
		if !applied {
			return nil
		}
		log.Printf("[PAYMENT] [INFO] order %s paid", order.ID.Hex())

		// A buyer can cancel before the gateway confirms the charge.
		if order.Status == models.OrderStatusCancelled {
			order.PaymentStatus = models.PaymentStatusPaid
			if err := p.Refund(ctx, order); err != nil {
				log.Printf("[PAYMENT] [ERROR] refund for cancelled order %s: %v", order.ID.Hex(), err)
			}
		}
		return nil

	case EventPaymentFailed:
		if _, err := p.store.SetPaymentStatus(ctx, order.ID,
			[]string{models.PaymentStatusPending}, models.PaymentStatusFailed); err != nil {
			return errors.Wrap(err, "mark order payment failed")
		}
		log.Printf("[PAYMENT] [WARN] order %s payment failed at gateway", order.ID.Hex())
		return nil

	default:
		return nil
	}
}

// Refund returns a paid order's money and marks it refunded.
func (p *Processor) Refund(ctx context.Context, order models.Order) error {
	if order.PaymentStatus != models.PaymentStatusPaid || order.PaymentIntentID == "" {
		return apperr.InvalidState("Order %s has no captured payment", order.ID.Hex())
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	if err := p.gateway.Refund(callCtx, order.PaymentIntentID); err != nil {
		metrics.PaymentAttempts.WithLabelValues("refund", "error").Inc()
		return errors.Wrapf(err, "refund order %s", order.ID.Hex())
	}
	metrics.PaymentAttempts.WithLabelValues("refund", "ok").Inc()

	if _, err := p.store.SetPaymentStatus(ctx, order.ID, []string{models.PaymentStatusPaid}, models.PaymentStatusRefunded); err != nil {
		return errors.Wrap(err, "mark order refunded")
	}
	log.Printf("[PAYMENT] [INFO] order %s refunded", order.ID.Hex())
	return nil
}
