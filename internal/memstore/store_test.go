package memstore_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/memstore"
	"supplyhub/internal/models"
)

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store := memstore.New()
	product := store.PutProduct(models.Product{Name: "Tomatoes", StockQuantity: 20})
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := store.DecrementStock(ctx, product.ID, 5)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, store.InsertOrder(ctx, &models.Order{Supplier: product.Supplier}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 20, store.Product(product.ID).StockQuantity)
	assert.Equal(t, 0, store.OrderCount())
}

func TestWithTransactionKeepsWritesOnSuccess(t *testing.T) {
	store := memstore.New()
	product := store.PutProduct(models.Product{Name: "Onions", StockQuantity: 10})
	ctx := context.Background()

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := store.DecrementStock(ctx, product.ID, 4)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, 6, store.Product(product.ID).StockQuantity)
}

func TestWithTransactionHonoursCancelledContext(t *testing.T) {
	store := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithTransaction(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
