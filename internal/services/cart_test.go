package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/shopforge/storefront-api/internal/kvstore"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
	"github.com/shopforge/storefront-api/internal/pricing"
)

func testMetrics(t *testing.T) *metrics.AppMetrics {
	t.Helper()
	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "test")
	require.NoError(t, err)
	return m
}

func testPricer() pricing.Calculator {
	return pricing.NewCalculatorFromStrings("0.10", "5.99")
}

func testProduct(id int64, name string, price string) models.Product {
	return models.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		ImageURL: "https://img.example/" + name + ".jpg",
	}
}

func TestCartMergeOnAdd(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))

	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestCartAddDefaultsQuantity(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))

	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 0))

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestCartQuantityFloor(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 2))

	assert.ErrorIs(t, cart.UpdateQuantity(ctx, 1, 10, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, cart.UpdateQuantity(ctx, 1, 10, -1), ErrInvalidQuantity)

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity, "rejected update must leave state unchanged")
}

func TestCartUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))

	require.NoError(t, cart.UpdateQuantity(ctx, 1, 10, 5))

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, items[0].Quantity)

	assert.ErrorIs(t, cart.UpdateQuantity(ctx, 1, 999, 3), ErrCartItemNotFound)
}

func TestCartIdempotentRemoval(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))

	require.NoError(t, cart.RemoveItem(ctx, 1, 10))
	require.NoError(t, cart.RemoveItem(ctx, 1, 10), "removing an absent item is not an error")
	require.NoError(t, cart.RemoveItem(ctx, 1, 999))

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartItemsCopyOut(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	items[0].Quantity = 99

	again, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Quantity, "mutating the returned slice must not affect the store")
}

func TestCartTotals(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 2))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(11, "mouse", "50"), 1))

	totals, err := cart.Totals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "250.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "25.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "5.99", totals.Shipping.StringFixed(2))
	assert.Equal(t, "280.99", totals.Total.StringFixed(2))
}

func TestCartPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	cart := NewCartService(store, testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 3))

	// a fresh service over the same blob store sees the saved state
	reloaded := NewCartService(store, testPricer(), testMetrics(t))
	items, err := reloaded.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(10), items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "100.00", items[0].UnitPrice.StringFixed(2))
}

func TestCartClearDeletesStoredBlob(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	cart := NewCartService(store, testPricer(), testMetrics(t))
	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 2))

	require.NoError(t, cart.Clear(ctx, 1))

	_, err := store.Get(ctx, "cart:1")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound, "clearing removes the key instead of saving an empty blob")

	items, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	// a fresh service over the same store starts from nothing
	reloaded := NewCartService(store, testPricer(), testMetrics(t))
	items, err = reloaded.Items(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCartsAreIndependentPerUser(t *testing.T) {
	ctx := context.Background()
	cart := NewCartService(kvstore.NewMemoryStore(), testPricer(), testMetrics(t))

	require.NoError(t, cart.AddItem(ctx, 1, testProduct(10, "keyboard", "100"), 1))
	require.NoError(t, cart.AddItem(ctx, 2, testProduct(11, "mouse", "50"), 1))

	one, err := cart.Items(ctx, 1)
	require.NoError(t, err)
	two, err := cart.Items(ctx, 2)
	require.NoError(t, err)

	require.Len(t, one, 1)
	require.Len(t, two, 1)
	assert.Equal(t, int64(10), one[0].ProductID)
	assert.Equal(t, int64(11), two[0].ProductID)
}
