package database

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"supplyhub/internal/ai"
	"supplyhub/internal/models"
)

// MarketActivity groups orders placed since `since` by supplier category.
// A non-empty city limits it to suppliers whose city matches
// case-insensitively.
func (s *Store) MarketActivity(ctx context.Context, city string, since time.Time) ([]ai.CategoryActivity, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"createdAt": bson.M{"$gte": since},
			"status":    bson.M{"$ne": models.OrderStatusCancelled},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         SuppliersCollection,
			"localField":   "supplier",
			"foreignField": "_id",
			"as":           "supplierInfo",
		}}},
		{{Key: "$unwind", Value: "$supplierInfo"}},
	}
	if city != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"supplierInfo.city": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(city) + "$", Options: "i"},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{
			"_id":           "$supplierInfo.category",
			"orderCount":    bson.M{"$sum": 1},
			"totalValue":    bson.M{"$sum": "$totalAmount"},
			"avgOrderValue": bson.M{"$avg": "$totalAmount"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"orderCount": -1}}},
	)
	return aggregate[ai.CategoryActivity](ctx, s.orders(), pipeline)
}

// RecentOrders returns the user's latest orders, newest first.
func (s *Store) RecentOrders(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Order, error) {
	return findAll[models.Order](ctx, s.orders(), bson.M{"user": userID}, pageOptions(0, limit))
}
