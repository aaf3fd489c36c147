package services

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
	"github.com/shopforge/storefront-api/internal/payment"
	"github.com/shopforge/storefront-api/internal/pricing"
)

// CartAccessor is the slice of the cart store checkout needs
type CartAccessor interface {
	Items(ctx context.Context, userID int64) ([]models.LineItem, error)
	Clear(ctx context.Context, userID int64) error
}

// StockChecker answers whether the catalog can cover a quantity
type StockChecker interface {
	HasStock(ctx context.Context, productID int64, quantity int) (bool, error)
}

// OrderWriter persists the finished order
type OrderWriter interface {
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
}

// CheckoutService turns a non-empty cart into a durable, paid order, or
// fails cleanly leaving the cart untouched. The protocol is strictly
// sequential with no retries: totals, payment intent, confirmation,
// order persistence, then cart clear.
type CheckoutService struct {
	cart     CartAccessor
	stock    StockChecker
	orders   OrderWriter
	payments payment.Provider
	pricer   pricing.Calculator
	currency string
	metrics  *metrics.AppMetrics

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewCheckoutService creates a checkout orchestrator
func NewCheckoutService(
	cart CartAccessor,
	stock StockChecker,
	orders OrderWriter,
	payments payment.Provider,
	pricer pricing.Calculator,
	currency string,
	m *metrics.AppMetrics,
) *CheckoutService {
	return &CheckoutService{
		cart:     cart,
		stock:    stock,
		orders:   orders,
		payments: payments,
		pricer:   pricer,
		currency: currency,
		metrics:  m,
		inFlight: make(map[int64]struct{}),
	}
}

// PlaceOrder runs the full checkout sequence for one user. A second call
// for the same user while one is in flight is rejected immediately, so a
// double submit cannot produce a duplicate charge. Every failure is
// terminal for the attempt; resubmitting re-runs the whole sequence with
// a fresh payment intent.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64, req models.CheckoutRequest) (*models.Order, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	s.mu.Lock()
	if _, busy := s.inFlight[userID]; busy {
		s.mu.Unlock()
		return nil, ErrCheckoutInFlight
	}
	s.inFlight[userID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, userID)
		s.mu.Unlock()
	}()

	s.metrics.CheckoutAttempts.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))

	// Preconditions, checked before any external call
	if err := validateShipping(req.ShippingInfo); err != nil {
		s.metrics.RecordCheckoutFailure(ctx, "validation")
		return nil, err
	}

	items, err := s.cart.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		s.metrics.RecordCheckoutFailure(ctx, "validation")
		return nil, ErrEmptyCart
	}

	for _, item := range items {
		ok, err := s.stock.HasStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.metrics.RecordCheckoutFailure(ctx, "validation")
			return nil, err
		}
		if !ok {
			s.metrics.RecordCheckoutFailure(ctx, "validation")
			return nil, ErrInsufficientStock
		}
	}

	// Step 1: totals from the live cart, converted to minor units
	totals := s.pricer.Totals(items)
	amount := pricing.MinorUnits(totals.Total)

	// Step 2: payment intent; failure aborts with the cart untouched
	intent, err := s.payments.CreateIntent(ctx, amount, s.currency)
	if err != nil {
		s.metrics.RecordCheckoutFailure(ctx, "intent")
		return nil, &PaymentIntentError{Err: err}
	}

	// Step 3: confirm the charge with the collected card details
	confirmation, err := s.payments.ConfirmPayment(ctx, intent.ClientSecret, req.Card, req.ShippingInfo)
	if err != nil {
		s.metrics.RecordCheckoutFailure(ctx, "confirmation")
		return nil, &PaymentConfirmationError{Message: err.Error()}
	}
	if !confirmation.Succeeded() {
		s.metrics.RecordCheckoutFailure(ctx, "confirmation")
		return nil, &PaymentConfirmationError{Message: confirmation.Message}
	}

	// Step 4: frozen snapshot of the cart at time of purchase
	orderItems := make([]models.OrderItem, len(items))
	for i, item := range items {
		orderItems[i] = models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		}
	}

	order := &models.Order{
		UserID:        userID,
		ShippingInfo:  req.ShippingInfo,
		Items:         orderItems,
		ItemsPrice:    totals.Subtotal,
		TaxPrice:      totals.Tax,
		ShippingPrice: totals.Shipping,
		TotalPrice:    totals.Total,
		PaymentInfo: models.PaymentInfo{
			TransactionID: confirmation.TransactionID,
			Status:        confirmation.Status,
		},
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		// The charge went through but the order write failed. There is no
		// compensating refund; the transaction id is logged and carried on
		// the error for manual reconciliation.
		log.Printf("[CHECKOUT] ORPHANED CHARGE: user_id=%d, transaction_id=%s, err=%v",
			userID, confirmation.TransactionID, err)
		s.metrics.RecordCheckoutFailure(ctx, "persistence")
		return nil, &OrderPersistenceError{TransactionID: confirmation.TransactionID, Err: err}
	}

	// Step 5: clear the cart only after the order is durable
	if err := s.cart.Clear(ctx, userID); err != nil {
		// The order exists; a stale cart is recoverable, so log and return
		// the order anyway
		log.Printf("[CHECKOUT] failed to clear cart after order %d: %v", created.ID, err)
	}

	log.Printf("[CHECKOUT] Order placed: order_id=%d, user_id=%d, total=%s, transaction_id=%s",
		created.ID, userID, created.TotalPrice, confirmation.TransactionID)

	return created, nil
}

// validateShipping requires every address field before any external call
func validateShipping(info models.ShippingInfo) error {
	fields := []struct {
		name  string
		value string
	}{
		{"address", info.Address},
		{"city", info.City},
		{"state", info.State},
		{"country", info.Country},
		{"postal_code", info.PostalCode},
		{"phone", info.Phone},
	}
	for _, f := range fields {
		if f.value == "" {
			return &ValidationError{Field: f.name}
		}
	}
	return nil
}
