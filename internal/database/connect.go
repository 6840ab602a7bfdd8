package database

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection         = "users"
	SuppliersCollection     = "suppliers"
	ProductsCollection      = "products"
	OrdersCollection        = "orders"
	ReviewsCollection       = "reviews"
	RefreshTokensCollection = "refresh_tokens"
)

// Connect opens a client and pings the primary. Order and review workflows
// use multi-document transactions, so the deployment must be a replica set.
func Connect(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongodb")
	}

	log.Println("Connect: mongodb reachable")
	return client, nil
}
