package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

// EnsureIndexes creates every collection's indexes concurrently and returns
// the first failure.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, ensure := range []func(context.Context, *mongo.Database) error{
		EnsureUserIndexes,
		EnsureSupplierIndexes,
		EnsureProductIndexes,
		EnsureOrderIndexes,
		EnsureReviewIndexes,
		EnsureRefreshTokenIndexes,
	} {
		ensure := ensure
		g.Go(func() error { return ensure(ctx, db) })
	}
	return g.Wait()
}

func createIndexes(parent context.Context, db *mongo.Database, collection string, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	log.Printf("EnsureIndexes: creating %d indexes on %s", len(models), collection)
	names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
	if err != nil {
		log.Printf("EnsureIndexes: %s index error: %v", collection, err)
		return err
	}
	log.Printf("EnsureIndexes: %s indexes ready: %v", collection, names)
	return nil
}

func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, UsersCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		},
	})
}

func EnsureSupplierIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, SuppliersCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		},
		{
			Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "category", Value: "text"},
			},
			Options: options.Index().SetName("supplier_text"),
		},
		{
			Keys:    bson.D{{Key: "owner", Value: 1}},
			Options: options.Index().SetName("owner_index"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "city", Value: 1}},
			Options: options.Index().SetName("category_city_index"),
		},
		{
			Keys:    bson.D{{Key: "rating", Value: -1}, {Key: "reviewCount", Value: -1}},
			Options: options.Index().SetName("rating_index"),
		},
	})
}

func EnsureProductIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, ProductsCollection, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("product_text"),
		},
		{
			Keys:    bson.D{{Key: "supplier", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index().SetName("supplier_category_index"),
		},
		{
			Keys:    bson.D{{Key: "price", Value: 1}},
			Options: options.Index().SetName("price_index"),
		},
	})
}

func EnsureOrderIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, OrdersCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_createdAt_index"),
		},
		{
			Keys:    bson.D{{Key: "supplier", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("supplier_createdAt_index"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_index"),
		},
		{
			Keys:    bson.D{{Key: "paymentStatus", Value: 1}, {Key: "paymentMethod", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("payment_pending_index"),
		},
		{
			Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
			Options: options.Index().
				SetName("paymentIntentId_index").
				SetPartialFilterExpression(bson.M{"paymentIntentId": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "trackingNumber", Value: 1}},
			Options: options.Index().
				SetName("trackingNumber_index").
				SetPartialFilterExpression(bson.M{"trackingNumber": bson.M{"$exists": true}}),
		},
	})
}

func EnsureReviewIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, ReviewsCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "supplier", Value: 1}},
			Options: options.Index().SetName("user_supplier_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "supplier", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("supplier_createdAt_index"),
		},
		{
			Keys:    bson.D{{Key: "rating", Value: 1}},
			Options: options.Index().SetName("rating_index"),
		},
	})
}

func EnsureRefreshTokenIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db, RefreshTokensCollection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
	})
}
