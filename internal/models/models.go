package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	SKU         string          `json:"sku" db:"sku"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// User represents a user account
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LineItem is one product-and-quantity entry in a cart.
// Exactly one LineItem exists per distinct product; quantity is always >= 1.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// Cart is the whole-state blob serialized to the key-value store on every mutation
type Cart struct {
	CartID    uuid.UUID  `json:"cart_id"`
	UserID    int64      `json:"user_id"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Wishlist holds full product snapshots, deduplicated by product ID
type Wishlist struct {
	UserID    int64     `json:"user_id"`
	Items     []Product `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShippingInfo is the address collected during checkout; all fields required
type ShippingInfo struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// PaymentInfo is the processor-side result recorded on the order
type PaymentInfo struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Order is the durable record of a successful checkout.
// Items are a frozen snapshot of the cart at time of purchase.
type Order struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	Status        OrderStatus     `json:"status" db:"status"`
	ShippingInfo  ShippingInfo    `json:"shipping_info"`
	Items         []OrderItem     `json:"items"`
	ItemsPrice    decimal.Decimal `json:"items_price" db:"items_price"`
	TaxPrice      decimal.Decimal `json:"tax_price" db:"tax_price"`
	ShippingPrice decimal.Decimal `json:"shipping_price" db:"shipping_price"`
	TotalPrice    decimal.Decimal `json:"total_price" db:"total_price"`
	PaymentInfo   PaymentInfo     `json:"payment_info"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is a purchased line item, copied from the cart so the record
// does not change when the product or the cart does
type OrderItem struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
	ImageURL  string          `json:"image_url" db:"image_url"`
}

// Totals is the derived order pricing; recomputed from the cart on every read,
// never cached
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// CardDetails are the raw card fields collected from the user at checkout
type CardDetails struct {
	Number   string `json:"number"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
	CVC      string `json:"cvc"`
	Name     string `json:"name"`
}

// AddToCartRequest represents a request to add an item to the cart
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest represents a quantity change for a cart line item
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// AddToWishlistRequest represents a request to save a product
type AddToWishlistRequest struct {
	ProductID int64 `json:"product_id"`
}

// CheckoutRequest represents a full checkout submission
type CheckoutRequest struct {
	ShippingInfo ShippingInfo `json:"shipping_info"`
	Card         CardDetails  `json:"card"`
}

// CreateUserRequest represents a request to create a user
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ProductRequest is the admin payload for creating or replacing a product
type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}

// UpdateUserRoleRequest grants or revokes the administrative role
type UpdateUserRoleRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// CartResponse represents the cart with its live totals
type CartResponse struct {
	CartID uuid.UUID  `json:"cart_id"`
	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// WishlistResponse represents the wishlist with its count
type WishlistResponse struct {
	Items []Product `json:"items"`
	Count int       `json:"count"`
}
