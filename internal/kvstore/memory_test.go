package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "cart:1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "cart:1", []byte(`{"items":[]}`)))

	value, err := store.Get(ctx, "cart:1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[]}`), value)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "wishlist:1", []byte("x")))
	require.NoError(t, store.Delete(ctx, "wishlist:1"))

	_, err := store.Get(ctx, "wishlist:1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// deleting an absent key is not an error
	require.NoError(t, store.Delete(ctx, "wishlist:1"))
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("original")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'X'

	stored, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)

	stored[0] = 'Y'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
