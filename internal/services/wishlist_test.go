package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopforge/storefront-api/internal/kvstore"
)

func TestWishlistDedup(t *testing.T) {
	ctx := context.Background()
	wishlist := NewWishlistService(kvstore.NewMemoryStore(), testMetrics(t))

	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))
	assert.ErrorIs(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")), ErrAlreadyInWishlist)

	items, err := wishlist.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1, "a duplicate add must not create a second entry")
}

func TestWishlistContains(t *testing.T) {
	ctx := context.Background()
	wishlist := NewWishlistService(kvstore.NewMemoryStore(), testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))

	saved, err := wishlist.Contains(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = wishlist.Contains(ctx, 1, 999)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestWishlistIdempotentRemoval(t *testing.T) {
	ctx := context.Background()
	wishlist := NewWishlistService(kvstore.NewMemoryStore(), testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))

	require.NoError(t, wishlist.Remove(ctx, 1, 10))
	require.NoError(t, wishlist.Remove(ctx, 1, 10))
	require.NoError(t, wishlist.Remove(ctx, 1, 999))

	count, err := wishlist.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWishlistCountAndClear(t *testing.T) {
	ctx := context.Background()
	wishlist := NewWishlistService(kvstore.NewMemoryStore(), testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(11, "mouse", "50")))

	count, err := wishlist.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, wishlist.Clear(ctx, 1))

	count, err = wishlist.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWishlistClearDeletesStoredBlob(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	wishlist := NewWishlistService(store, testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))

	require.NoError(t, wishlist.Clear(ctx, 1))

	_, err := store.Get(ctx, "wishlist:1")
	assert.ErrorIs(t, err, kvstore.ErrKeyNotFound, "clearing removes the key instead of saving an empty blob")

	reloaded := NewWishlistService(store, testMetrics(t))
	count, err := reloaded.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWishlistSnapshotsFullProduct(t *testing.T) {
	ctx := context.Background()
	wishlist := NewWishlistService(kvstore.NewMemoryStore(), testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))

	items, err := wishlist.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keyboard", items[0].Name)
	assert.Equal(t, "100.00", items[0].Price.StringFixed(2))
	assert.NotEmpty(t, items[0].ImageURL)
}

func TestWishlistPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()

	wishlist := NewWishlistService(store, testMetrics(t))
	require.NoError(t, wishlist.Add(ctx, 1, testProduct(10, "keyboard", "100")))

	reloaded := NewWishlistService(store, testMetrics(t))
	saved, err := reloaded.Contains(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, saved)
}
