package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key has no stored value
var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key-value blob contract used to persist cart and
// wishlist state: whole state is serialized on every mutation and
// deserialized on first use
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
