package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shopforge/storefront-api/internal/db"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/models"
)

// ProductCache holds cached products
type ProductCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// ProductService handles catalog reads and stock checks
type ProductService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	cache   ProductCache
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, metrics *metrics.AppMetrics) *ProductService {
	return &ProductService{
		db:      db,
		metrics: metrics,
		cache:   ProductCache{items: make(map[int64]cachedProduct)},
	}
}

// ListProducts returns a paginated list of products
func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	start := time.Now()
	query := `SELECT id, name, description, price, category, sku, image_url, stock, created_at, updated_at FROM products LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, false)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, true)

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.SKU, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// GetProduct returns a product by ID, serving recent reads from cache
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.cache.mu.RLock()
	if cached, exists := s.cache.items[id]; exists && time.Now().Before(cached.expires) {
		s.cache.mu.RUnlock()
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))
		s.recordView(ctx, cached.product)
		return &cached.product, nil
	}
	s.cache.mu.RUnlock()

	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{})...))

	start := time.Now()
	query := `SELECT id, name, description, price, category, sku, image_url, stock, created_at, updated_at FROM products WHERE id = ?`
	var p models.Product
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.SKU, &p.ImageURL, &p.Stock, &p.CreatedAt, &p.UpdatedAt)

	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	s.cache.mu.Lock()
	s.cache.items[id] = cachedProduct{
		product: p,
		expires: time.Now().Add(5 * time.Minute),
	}
	s.cache.mu.Unlock()

	s.recordView(ctx, p)
	return &p, nil
}

// invalidate drops a product from the cache after a catalog write
func (s *ProductService) invalidate(id int64) {
	s.cache.mu.Lock()
	delete(s.cache.items, id)
	s.cache.mu.Unlock()
}

// CreateProduct inserts a new catalog product. Admin only, enforced at the
// handler.
func (s *ProductService) CreateProduct(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if req.Price.IsNegative() {
		return nil, &ValidationError{Field: "price"}
	}
	if req.Stock < 0 {
		return nil, &ValidationError{Field: "stock"}
	}

	start := time.Now()
	query := "INSERT INTO products (name, description, price, category, sku, image_url, stock) VALUES (?, ?, ?, ?, ?, ?, ?)"
	result, err := s.db.ExecContext(ctx, query, req.Name, req.Description, req.Price, req.Category, req.SKU, req.ImageURL, req.Stock)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}

	log.Printf("[CATALOG] Product created: product_id=%d, name=%s", id, req.Name)
	return s.GetProduct(ctx, id)
}

// UpdateProduct replaces a product's catalog fields and drops any cached copy
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req models.ProductRequest) (*models.Product, error) {
	if req.Name == "" {
		return nil, &ValidationError{Field: "name"}
	}
	if req.Price.IsNegative() {
		return nil, &ValidationError{Field: "price"}
	}
	if req.Stock < 0 {
		return nil, &ValidationError{Field: "stock"}
	}

	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	start := time.Now()
	query := "UPDATE products SET name = ?, description = ?, price = ?, category = ?, sku = ?, image_url = ?, stock = ? WHERE id = ?"
	_, err := s.db.ExecContext(ctx, query, req.Name, req.Description, req.Price, req.Category, req.SKU, req.ImageURL, req.Stock, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.invalidate(id)
	log.Printf("[CATALOG] Product updated: product_id=%d, name=%s", id, req.Name)
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product from the catalog. Existing orders keep
// their frozen line item snapshots.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	start := time.Now()
	query := "DELETE FROM products WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	s.invalidate(id)
	log.Printf("[CATALOG] Product deleted: product_id=%d", id)
	return nil
}

func (s *ProductService) recordView(ctx context.Context, p models.Product) {
	viewAttrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", p.ID),
		attribute.String("product_category", p.Category),
	})
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(viewAttrs...))
}

// HasStock reports whether the catalog can cover the requested quantity.
// Carts never validate stock; only checkout calls this.
func (s *ProductService) HasStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	start := time.Now()
	query := `SELECT stock FROM products WHERE id = ?`
	var stock int
	err := s.db.QueryRowContext(ctx, query, productID).Scan(&stock)

	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)

	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrProductNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check stock: %w", err)
	}

	if stock < quantity {
		log.Printf("[STOCK] product_id=%d requested=%d available=%d", productID, quantity, stock)
		return false, nil
	}
	return true, nil
}
