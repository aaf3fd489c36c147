package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopforge/storefront-api/internal/kvstore"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
	"github.com/shopforge/storefront-api/internal/pricing"
)

// CartService is the authoritative in-memory cart state, persisted as a
// whole-state blob on every mutation and loaded from the blob store on
// first use
type CartService struct {
	store   kvstore.Store
	pricer  pricing.Calculator
	metrics *metrics.AppMetrics

	mu    sync.Mutex
	carts map[int64]*models.Cart
}

// NewCartService creates a new cart service over the given blob store
func NewCartService(store kvstore.Store, pricer pricing.Calculator, m *metrics.AppMetrics) *CartService {
	return &CartService{
		store:   store,
		pricer:  pricer,
		metrics: m,
		carts:   make(map[int64]*models.Cart),
	}
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

// loadLocked returns the user's cart, reading it from the blob store on
// first access. Callers must hold s.mu.
func (s *CartService) loadLocked(ctx context.Context, userID int64) (*models.Cart, error) {
	if cart, ok := s.carts[userID]; ok {
		return cart, nil
	}

	blob, err := s.store.Get(ctx, cartKey(userID))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		cart := &models.Cart{CartID: uuid.New(), UserID: userID}
		s.carts[userID] = cart
		return cart, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(blob, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	s.carts[userID] = &cart
	return &cart, nil
}

// saveLocked serializes the whole cart state to the blob store.
// Callers must hold s.mu.
func (s *CartService) saveLocked(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	blob, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.store.Set(ctx, cartKey(cart.UserID), blob); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	s.metrics.CartItemsCount.Record(ctx, int64(count), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", cart.UserID),
	})...))

	return nil
}

// AddItem puts a product in the cart. Adding a product that is already
// present increments its quantity; the cart never holds two line items
// for the same product. Stock is not validated here.
func (s *CartService) AddItem(ctx context.Context, userID int64, product models.Product, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == product.ID {
			cart.Items[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, models.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
		})
	}

	return s.saveLocked(ctx, cart)
}

// UpdateQuantity replaces a line item's quantity. Quantities below one
// are rejected with ErrInvalidQuantity, leaving the cart unchanged.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return s.saveLocked(ctx, cart)
		}
	}
	return ErrCartItemNotFound
}

// RemoveItem removes a line item if present; removing an absent item is
// not an error
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return s.saveLocked(ctx, cart)
		}
	}
	return nil
}

// Clear empties the cart unconditionally and removes the stored blob
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return err
	}

	cart.Items = nil
	cart.UpdatedAt = time.Now()
	if err := s.store.Delete(ctx, cartKey(userID)); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	s.metrics.CartItemsCount.Record(ctx, 0, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", userID),
	})...))
	return nil
}

// Items returns a copy of the cart's line items in insertion order;
// mutating the returned slice does not affect the cart
func (s *CartService) Items(ctx context.Context, userID int64) ([]models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]models.LineItem, len(cart.Items))
	copy(items, cart.Items)
	return items, nil
}

// Totals computes the live order totals from the current cart
func (s *CartService) Totals(ctx context.Context, userID int64) (models.Totals, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return models.Totals{}, err
	}
	return s.pricer.Totals(items), nil
}

// Get returns the cart with its items and live totals
func (s *CartService) Get(ctx context.Context, userID int64) (*models.CartResponse, error) {
	s.mu.Lock()
	cart, err := s.loadLocked(ctx, userID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	items := make([]models.LineItem, len(cart.Items))
	copy(items, cart.Items)
	cartID := cart.CartID
	s.mu.Unlock()

	return &models.CartResponse{
		CartID: cartID,
		Items:  items,
		Totals: s.pricer.Totals(items),
	}, nil
}
