package database

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

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

// Store is the MongoDB persistence behind the order, review and payment
// workflows.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) users() *mongo.Collection     { return s.db.Collection(UsersCollection) }
func (s *Store) suppliers() *mongo.Collection { return s.db.Collection(SuppliersCollection) }
func (s *Store) products() *mongo.Collection  { return s.db.Collection(ProductsCollection) }
func (s *Store) orders() *mongo.Collection    { return s.db.Collection(OrdersCollection) }
func (s *Store) reviews() *mongo.Collection   { return s.db.Collection(ReviewsCollection) }

// WithTransaction runs fn inside a multi-document transaction. fn receives
// the session context and must pass it to every store call. Transient
// errors are retried by the driver.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// mapErr translates driver sentinels into the model errors the services
// check for.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Mark(err, models.ErrDuplicate)
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return out, mapErr(err)
	}
	return out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pageOptions(skip int64, limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(skip)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func (s *Store) FindUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return findOne[models.User](ctx, s.users(), bson.M{"_id": id})
}

func (s *Store) FindSupplier(ctx context.Context, id primitive.ObjectID) (models.Supplier, error) {
	return findOne[models.Supplier](ctx, s.suppliers(), bson.M{"_id": id})
}

func (s *Store) OwnedSupplierIDs(ctx context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.suppliers().Find(ctx, bson.M{"owner": owner}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find owned suppliers")
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode supplier id")
		}
		ids = append(ids, row.ID)
	}
	return ids, errors.Wrap(cursor.Err(), "iterate owned suppliers")
}

func (s *Store) FindProduct(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	return findOne[models.Product](ctx, s.products(), bson.M{"_id": id})
}

func (s *Store) DecrementStock(ctx context.Context, productID primitive.ObjectID, qty int) (bool, error) {
	res, err := s.products().UpdateOne(ctx,
		bson.M{"_id": productID, "stockQuantity": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stockQuantity": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// IncrementStock returns qty to a product. A product deleted since the order
// was placed is skipped.
func (s *Store) IncrementStock(ctx context.Context, productID primitive.ObjectID, qty int) error {
	_, err := s.products().UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{
			"$inc": bson.M{"stockQuantity": qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	return err
}

func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.orders().InsertOne(ctx, order)
	return mapErr(err)
}

func (s *Store) FindOrder(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return findOne[models.Order](ctx, s.orders(), bson.M{"_id": id})
}

func (s *Store) TransitionOrder(ctx context.Context, id primitive.ObjectID, from []string, upd orders.Update) (models.Order, bool, error) {
	set := bson.M{"updatedAt": upd.UpdatedAt}
	if upd.Status != "" {
		set["status"] = upd.Status
	}
	if upd.TrackingNumber != "" {
		set["trackingNumber"] = upd.TrackingNumber
	}
	if upd.EstimatedDelivery != nil {
		set["estimatedDelivery"] = upd.EstimatedDelivery
	}
	if upd.ActualDelivery != nil {
		set["actualDelivery"] = upd.ActualDelivery
	}

	var updated models.Order
	err := s.orders().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Order{}, false, err
	}

	current, err := s.FindOrder(ctx, id)
	if err != nil {
		return models.Order{}, false, err
	}
	return current, false, nil
}

func orderFilter(f orders.Filter) bson.M {
	filter := bson.M{}
	if f.User != nil {
		filter["user"] = *f.User
	}
	if len(f.Suppliers) > 0 {
		filter["supplier"] = bson.M{"$in": f.Suppliers}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (s *Store) ListOrders(ctx context.Context, f orders.Filter) ([]models.Order, int64, error) {
	filter := orderFilter(f)
	total, err := s.orders().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	list, err := findAll[models.Order](ctx, s.orders(), filter, pageOptions(f.Skip(), f.Limit))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) OrderStats(ctx context.Context, userID primitive.ObjectID) (orders.Stats, error) {
	match := bson.D{{Key: "$match", Value: bson.M{"user": userID}}}

	overview, err := aggregate[orders.Overview](ctx, s.orders(), mongo.Pipeline{
		match,
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"totalOrders":   bson.M{"$sum": 1},
			"totalSpent":    bson.M{"$sum": "$totalAmount"},
			"avgOrderValue": bson.M{"$avg": "$totalAmount"},
		}}},
	})
	if err != nil {
		return orders.Stats{}, err
	}

	breakdown, err := aggregate[orders.StatusCount](ctx, s.orders(), mongo.Pipeline{
		match,
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return orders.Stats{}, err
	}

	stats := orders.Stats{StatusBreakdown: breakdown}
	if len(overview) > 0 {
		stats.Overview = overview[0]
	}
	return stats, nil
}

func (s *Store) FindOrderByPaymentIntent(ctx context.Context, intentID string) (models.Order, error) {
	return findOne[models.Order](ctx, s.orders(), bson.M{"paymentIntentId": intentID})
}

func (s *Store) RecordPaymentAttempt(ctx context.Context, id primitive.ObjectID, intentID string) (int, error) {
	update := bson.M{"$inc": bson.M{"paymentAttempts": 1}}
	set := bson.M{"updatedAt": time.Now()}
	if intentID != "" {
		set["paymentIntentId"] = intentID
	}
	update["$set"] = set

	var updated models.Order
	err := s.orders().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return 0, mapErr(err)
	}
	return updated.PaymentAttempts, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, from []string, to string) (bool, error) {
	res, err := s.orders().UpdateOne(ctx,
		bson.M{"_id": id, "paymentStatus": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"paymentStatus": to, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := s.orders().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, models.ErrNotFound
	}
	return false, nil
}

func (s *Store) PendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[models.Order](ctx, s.orders(), bson.M{
		"paymentMethod": models.PaymentMethodCard,
		"paymentStatus": models.PaymentStatusPending,
		"status":        bson.M{"$ne": models.OrderStatusCancelled},
		"createdAt":     bson.M{"$lt": createdBefore},
		"$or": bson.A{
			bson.M{"paymentIntentId": bson.M{"$exists": false}},
			bson.M{"paymentIntentId": ""},
		},
	}, opts)
}

func (s *Store) FindReview(ctx context.Context, id primitive.ObjectID) (models.Review, error) {
	return findOne[models.Review](ctx, s.reviews(), bson.M{"_id": id})
}

func (s *Store) FindUserReview(ctx context.Context, userID, supplierID primitive.ObjectID) (models.Review, error) {
	return findOne[models.Review](ctx, s.reviews(), bson.M{"user": userID, "supplier": supplierID})
}

func (s *Store) InsertReview(ctx context.Context, review *models.Review) error {
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	_, err := s.reviews().InsertOne(ctx, review)
	return mapErr(err)
}

func (s *Store) UpdateReview(ctx context.Context, id primitive.ObjectID, rating int, comment string, updatedAt time.Time) (models.Review, error) {
	var updated models.Review
	err := s.reviews().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"rating": rating, "comment": comment, "updatedAt": updatedAt}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	return updated, mapErr(err)
}

func (s *Store) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.reviews().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementHelpful(ctx context.Context, id primitive.ObjectID) (models.Review, error) {
	var updated models.Review
	err := s.reviews().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"helpfulCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	return updated, mapErr(err)
}

func (s *Store) RatingSummary(ctx context.Context, supplierID primitive.ObjectID) (models.RatingSummary, error) {
	rows, err := aggregate[struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}](ctx, s.reviews(), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"supplier": supplierID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return models.RatingSummary{}, err
	}
	if len(rows) == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: rows[0].Average, Count: rows[0].Count}, nil
}

func (s *Store) SetSupplierRating(ctx context.Context, supplierID primitive.ObjectID, rating float64, count int) error {
	res, err := s.suppliers().UpdateOne(ctx,
		bson.M{"_id": supplierID},
		bson.M{"$set": bson.M{"rating": rating, "reviewCount": count, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) RatingDistribution(ctx context.Context, supplierID primitive.ObjectID) ([]reviews.RatingBucket, error) {
	return aggregate[reviews.RatingBucket](ctx, s.reviews(), mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"supplier": supplierID}}},
		{{Key: "$group", Value: bson.M{"_id": "$rating", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": -1}}},
	})
}

func (s *Store) ListReviews(ctx context.Context, f reviews.Filter) ([]models.Review, int64, error) {
	filter := bson.M{}
	if f.Supplier != nil {
		filter["supplier"] = *f.Supplier
	}
	if f.User != nil {
		filter["user"] = *f.User
	}
	if f.Rating != 0 {
		filter["rating"] = f.Rating
	}

	total, err := s.reviews().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	list, err := findAll[models.Review](ctx, s.reviews(), filter, pageOptions(f.Skip(), f.Limit))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Store) HasDeliveredOrder(ctx context.Context, userID, supplierID primitive.ObjectID) (bool, error) {
	n, err := s.orders().CountDocuments(ctx, bson.M{
		"user":     userID,
		"supplier": supplierID,
		"status":   models.OrderStatusDelivered,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
