package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopforge/storefront-api/internal/kvstore"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
)

// WishlistService is a deduplicated saved-items list, independent of the
// cart, with the same whole-state persistence contract under its own key
type WishlistService struct {
	store   kvstore.Store
	metrics *metrics.AppMetrics

	mu        sync.Mutex
	wishlists map[int64]*models.Wishlist
}

// NewWishlistService creates a new wishlist service over the given blob store
func NewWishlistService(store kvstore.Store, m *metrics.AppMetrics) *WishlistService {
	return &WishlistService{
		store:     store,
		metrics:   m,
		wishlists: make(map[int64]*models.Wishlist),
	}
}

func wishlistKey(userID int64) string {
	return fmt.Sprintf("wishlist:%d", userID)
}

func (s *WishlistService) loadLocked(ctx context.Context, userID int64) (*models.Wishlist, error) {
	if list, ok := s.wishlists[userID]; ok {
		return list, nil
	}

	blob, err := s.store.Get(ctx, wishlistKey(userID))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		list := &models.Wishlist{UserID: userID}
		s.wishlists[userID] = list
		return list, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}

	var list models.Wishlist
	if err := json.Unmarshal(blob, &list); err != nil {
		return nil, fmt.Errorf("failed to decode wishlist: %w", err)
	}
	s.wishlists[userID] = &list
	return &list, nil
}

func (s *WishlistService) saveLocked(ctx context.Context, list *models.Wishlist) error {
	list.UpdatedAt = time.Now()
	blob, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode wishlist: %w", err)
	}
	if err := s.store.Set(ctx, wishlistKey(list.UserID), blob); err != nil {
		return fmt.Errorf("failed to save wishlist: %w", err)
	}

	s.metrics.WishlistItemsCount.Record(ctx, int64(len(list.Items)), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", list.UserID),
	})...))

	return nil
}

// Add saves a full product snapshot. A product that is already saved is
// rejected with ErrAlreadyInWishlist so the UI can show "already saved".
func (s *WishlistService) Add(ctx context.Context, userID int64, product models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	for _, item := range list.Items {
		if item.ID == product.ID {
			return ErrAlreadyInWishlist
		}
	}

	list.Items = append(list.Items, product)
	return s.saveLocked(ctx, list)
}

// Remove deletes a saved product; removing an absent product is not an error
func (s *WishlistService) Remove(ctx context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	for i := range list.Items {
		if list.Items[i].ID == productID {
			list.Items = append(list.Items[:i], list.Items[i+1:]...)
			return s.saveLocked(ctx, list)
		}
	}
	return nil
}

// Contains reports whether the product is saved, used to render toggle state
func (s *WishlistService) Contains(ctx context.Context, userID, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, item := range list.Items {
		if item.ID == productID {
			return true, nil
		}
	}
	return false, nil
}

// List returns a copy of the saved product snapshots
func (s *WishlistService) List(ctx context.Context, userID int64) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]models.Product, len(list.Items))
	copy(items, list.Items)
	return items, nil
}

// Count returns the number of saved products
func (s *WishlistService) Count(ctx context.Context, userID int64) (int, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Clear empties the wishlist and removes the stored blob
func (s *WishlistService) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	list.Items = nil
	list.UpdatedAt = time.Now()
	if err := s.store.Delete(ctx, wishlistKey(userID)); err != nil {
		return fmt.Errorf("failed to clear wishlist: %w", err)
	}

	s.metrics.WishlistItemsCount.Record(ctx, 0, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", userID),
	})...))
	return nil
}
