package database

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"supplyhub/internal/models"
	"supplyhub/internal/orders"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.Equal(t, models.ErrNotFound, mapErr(mongo.ErrNoDocuments))

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.True(t, errors.Is(mapErr(dup), models.ErrDuplicate))

	other := errors.New("socket closed")
	assert.Equal(t, other, mapErr(other))
}

func TestOrderFilter(t *testing.T) {
	user := primitive.NewObjectID()
	sup := primitive.NewObjectID()

	assert.Equal(t, bson.M{}, orderFilter(orders.Filter{}))

	got := orderFilter(orders.Filter{User: &user, Suppliers: []primitive.ObjectID{sup}, Status: models.OrderStatusShipped})
	assert.Equal(t, user, got["user"])
	assert.Equal(t, bson.M{"$in": []primitive.ObjectID{sup}}, got["supplier"])
	assert.Equal(t, models.OrderStatusShipped, got["status"])
}

func TestPageOptions(t *testing.T) {
	opts := pageOptions(20, 10)
	assert.Equal(t, int64(20), *opts.Skip)
	assert.Equal(t, int64(10), *opts.Limit)

	opts = pageOptions(0, 0)
	assert.Nil(t, opts.Limit)
}
