package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopforge/storefront-api/internal/db"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
)

// OrderService persists orders and enforces the status lifecycle
type OrderService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics) *OrderService {
	return &OrderService{db: db, metrics: metrics}
}

// CreateOrder writes the order and its frozen line items in one
// transaction and returns the stored record
func (s *OrderService) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	orderQuery := `INSERT INTO orders
		(user_id, status, items_price, tax_price, shipping_price, total_price,
		 shipping_address, shipping_city, shipping_state, shipping_country, shipping_postal_code, shipping_phone,
		 payment_transaction_id, payment_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, orderQuery,
		order.UserID, models.StatusProcessing,
		order.ItemsPrice, order.TaxPrice, order.ShippingPrice, order.TotalPrice,
		order.ShippingInfo.Address, order.ShippingInfo.City, order.ShippingInfo.State,
		order.ShippingInfo.Country, order.ShippingInfo.PostalCode, order.ShippingInfo.Phone,
		order.PaymentInfo.TransactionID, order.PaymentInfo.Status,
	)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get order ID: %w", err)
	}

	start = time.Now()
	itemQuery := "INSERT INTO order_items (order_id, product_id, name, price, quantity, image_url) VALUES (?, ?, ?, ?, ?, ?)"
	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, itemQuery, orderID, item.ProductID, item.Name, item.Price, item.Quantity, item.ImageURL)
		s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ORDER] Order created: order_id=%d, user_id=%d, total=%s", orderID, order.UserID, order.TotalPrice)

	orderAttrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", string(models.StatusProcessing)),
	})
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(orderAttrs...))
	total, _ := order.TotalPrice.Float64()
	s.metrics.RevenueTotal.Add(ctx, total, metric.WithAttributes(orderAttrs...))

	return s.GetOrder(ctx, orderID)
}

// GetOrder returns an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	start := time.Now()
	query := `SELECT id, user_id, status, items_price, tax_price, shipping_price, total_price,
		shipping_address, shipping_city, shipping_state, shipping_country, shipping_postal_code, shipping_phone,
		payment_transaction_id, payment_status, created_at, updated_at
		FROM orders WHERE id = ?`
	var order models.Order
	err := s.db.QueryRowContext(ctx, query, orderID).Scan(
		&order.ID, &order.UserID, &order.Status,
		&order.ItemsPrice, &order.TaxPrice, &order.ShippingPrice, &order.TotalPrice,
		&order.ShippingInfo.Address, &order.ShippingInfo.City, &order.ShippingInfo.State,
		&order.ShippingInfo.Country, &order.ShippingInfo.PostalCode, &order.ShippingInfo.Phone,
		&order.PaymentInfo.TransactionID, &order.PaymentInfo.Status,
		&order.CreatedAt, &order.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.orderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (s *OrderService) orderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	start := time.Now()
	query := "SELECT id, order_id, product_id, name, price, quantity, image_url FROM order_items WHERE order_id = ?"
	rows, err := s.db.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListUserOrders returns all orders for a user, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	start := time.Now()
	query := `SELECT id, user_id, status, items_price, tax_price, shipping_price, total_price,
		shipping_address, shipping_city, shipping_state, shipping_country, shipping_postal_code, shipping_phone,
		payment_transaction_id, payment_status, created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status,
			&order.ItemsPrice, &order.TaxPrice, &order.ShippingPrice, &order.TotalPrice,
			&order.ShippingInfo.Address, &order.ShippingInfo.City, &order.ShippingInfo.State,
			&order.ShippingInfo.Country, &order.ShippingInfo.PostalCode, &order.ShippingInfo.Phone,
			&order.PaymentInfo.TransactionID, &order.PaymentInfo.Status,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// ListAllOrders returns every order in the system, newest first. Admin
// only, enforced at the handler.
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	start := time.Now()
	query := `SELECT id, user_id, status, items_price, tax_price, shipping_price, total_price,
		shipping_address, shipping_city, shipping_state, shipping_country, shipping_postal_code, shipping_phone,
		payment_transaction_id, payment_status, created_at, updated_at
		FROM orders ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status,
			&order.ItemsPrice, &order.TaxPrice, &order.ShippingPrice, &order.TotalPrice,
			&order.ShippingInfo.Address, &order.ShippingInfo.City, &order.ShippingInfo.State,
			&order.ShippingInfo.Country, &order.ShippingInfo.PostalCode, &order.ShippingInfo.Phone,
			&order.PaymentInfo.TransactionID, &order.PaymentInfo.Status,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// UpdateOrderStatus moves an order along the lifecycle. Disallowed
// transitions are rejected with ErrInvalidTransition; the current status
// is read and updated under one transaction.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, next models.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	selectQuery := "SELECT status FROM orders WHERE id = ? FOR UPDATE"
	var current models.OrderStatus
	err = tx.QueryRowContext(ctx, selectQuery, orderID).Scan(&current)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", selectQuery, start, err == nil)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get order status: %w", err)
	}

	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	start = time.Now()
	updateQuery := "UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?"
	_, err = tx.ExecContext(ctx, updateQuery, next, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", updateQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ORDER] Status updated: order_id=%d, %s -> %s", orderID, current, next)
	return nil
}

// CancelOrder cancels an order on the owner's behalf. Allowed only while
// the order is still Processing.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID int64) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrForbidden
	}
	if !order.Status.Cancellable() {
		return fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, order.Status)
	}

	if err := s.UpdateOrderStatus(ctx, orderID, models.StatusCancelled); err != nil {
		return err
	}

	s.metrics.OrdersCancelled.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", userID),
	})...))

	return nil
}
