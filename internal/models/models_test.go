package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type taggedDoc struct {
	Tags StringList `bson:"tags"`
}

func TestStringListDecodesStringAndArray(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"tags": "fresh, organic ,"})
	require.NoError(t, err)

	var doc taggedDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"fresh", "organic"}, doc.Tags)

	raw, err = bson.Marshal(bson.M{"tags": bson.A{"bulk", "local"}})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, StringList{"bulk", "local"}, doc.Tags)
}

func TestStringListMarshalsNilAsEmptyArray(t *testing.T) {
	raw, err := bson.Marshal(taggedDoc{})
	require.NoError(t, err)

	var out bson.M
	require.NoError(t, bson.Unmarshal(raw, &out))
	tags, ok := out["tags"].(bson.A)
	require.True(t, ok, "tags should be stored as an array")
	assert.Empty(t, tags)
}

func TestGeoPointStoresLonLat(t *testing.T) {
	p := NewGeoPoint(13.08, 80.27)
	assert.Equal(t, []float64{80.27, 13.08}, p.Coordinates)
	assert.Equal(t, 13.08, p.Lat())
	assert.Equal(t, 80.27, p.Lon())
	assert.True(t, p.Valid())

	var missing *GeoPoint
	assert.False(t, missing.Valid())
	assert.Zero(t, missing.Lat())
}

func TestOrderStatusRules(t *testing.T) {
	assert.Less(t, StatusRank(OrderStatusPending), StatusRank(OrderStatusShipped))
	assert.Equal(t, -1, StatusRank(OrderStatusCancelled))
	assert.True(t, ValidOrderStatus(OrderStatusCancelled))
	assert.False(t, ValidOrderStatus("lost"))

	assert.True(t, Cancellable(OrderStatusPending))
	assert.True(t, Cancellable(OrderStatusConfirmed))
	assert.False(t, Cancellable(OrderStatusShipped))

	assert.True(t, IsTerminal(OrderStatusDelivered))
	assert.True(t, IsTerminal(OrderStatusCancelled))
	assert.False(t, IsTerminal(OrderStatusProcessing))
}

func TestEnumerations(t *testing.T) {
	assert.True(t, ValidPaymentMethod("Credit Card"))
	assert.False(t, ValidPaymentMethod("Bitcoin"))
	assert.True(t, ValidUnit("quintal"))
	assert.True(t, ValidProductCategory("Pulses"))
	assert.True(t, ValidSupplierCategory("Dairy & Eggs"))
	assert.False(t, ValidRole("superuser"))
}
