package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/shopforge/storefront-api/internal/db"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/middleware"
	"github.com/shopforge/storefront-api/internal/models"
	"github.com/shopforge/storefront-api/internal/services"
	"github.com/shopforge/storefront-api/pkg/config"
)

// App holds application dependencies
type App struct {
	config          *config.Config
	db              *db.DB
	metrics         *metrics.AppMetrics
	productService  *services.ProductService
	cartService     *services.CartService
	wishlistService *services.WishlistService
	orderService    *services.OrderService
	userService     *services.UserService
	checkoutService *services.CheckoutService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	database *db.DB,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	cs *services.CartService,
	ws *services.WishlistService,
	os *services.OrderService,
	us *services.UserService,
	chs *services.CheckoutService,
) *App {
	return &App{
		config:          cfg,
		db:              database,
		metrics:         m,
		productService:  ps,
		cartService:     cs,
		wishlistService: ws,
		orderService:    os,
		userService:     us,
		checkoutService: chs,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	// Middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	// API Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart", a.ClearCartHandler).Methods("DELETE")
	api.HandleFunc("/cart/items", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/items/{productID}", a.UpdateCartItemHandler).Methods("PUT")
	api.HandleFunc("/cart/items/{productID}", a.RemoveFromCartHandler).Methods("DELETE")

	// Wishlist
	api.HandleFunc("/wishlist", a.GetWishlistHandler).Methods("GET")
	api.HandleFunc("/wishlist/items", a.AddToWishlistHandler).Methods("POST")
	api.HandleFunc("/wishlist/items/{productID}", a.RemoveFromWishlistHandler).Methods("DELETE")

	// Checkout
	api.HandleFunc("/checkout", a.CheckoutHandler).Methods("POST")

	// Orders
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id}", a.GetOrderHandler).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", a.CancelOrderHandler).Methods("POST")
	api.HandleFunc("/orders/{id}/status", a.adminOnly(a.UpdateOrderStatusHandler)).Methods("PUT")

	// Users
	api.HandleFunc("/users", a.CreateUserHandler).Methods("POST")
	api.HandleFunc("/users/{id}", a.GetUserHandler).Methods("GET")

	// Admin back-office
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/products", a.adminOnly(a.CreateProductHandler)).Methods("POST")
	admin.HandleFunc("/products/{id}", a.adminOnly(a.UpdateProductHandler)).Methods("PUT")
	admin.HandleFunc("/products/{id}", a.adminOnly(a.DeleteProductHandler)).Methods("DELETE")
	admin.HandleFunc("/orders", a.adminOnly(a.ListAllOrdersHandler)).Methods("GET")
	admin.HandleFunc("/users", a.adminOnly(a.ListUsersHandler)).Methods("GET")
	admin.HandleFunc("/users/{id}/role", a.adminOnly(a.UpdateUserRoleHandler)).Methods("PUT")
	admin.HandleFunc("/users/{id}", a.adminOnly(a.DeleteUserHandler)).Methods("DELETE")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := listParams(r)

	products, err := a.productService.ListProducts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid product ID")
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	cart, err := a.cartService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/v1/cart/items
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.productService.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := a.cartService.AddItem(r.Context(), userID, *product, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	cart, err := a.cartService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// UpdateCartItemHandler handles PUT /api/v1/cart/items/{productID}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID", "Invalid product ID")
	if !ok {
		return
	}

	var req models.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := a.cartService.UpdateQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}

	cart, err := a.cartService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveFromCartHandler handles DELETE /api/v1/cart/items/{productID}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID", "Invalid product ID")
	if !ok {
		return
	}

	if err := a.cartService.RemoveItem(r.Context(), userID, productID); err != nil {
		writeError(w, err)
		return
	}

	cart, err := a.cartService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ClearCartHandler handles DELETE /api/v1/cart
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := a.cartService.Clear(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetWishlistHandler handles GET /api/v1/wishlist
func (a *App) GetWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := a.wishlistService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.WishlistResponse{Items: items, Count: len(items)})
}

// AddToWishlistHandler handles POST /api/v1/wishlist/items
func (a *App) AddToWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.AddToWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.productService.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := a.wishlistService.Add(r.Context(), userID, *product); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// RemoveFromWishlistHandler handles DELETE /api/v1/wishlist/items/{productID}
func (a *App) RemoveFromWishlistHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID", "Invalid product ID")
	if !ok {
		return
	}

	if err := a.wishlistService.Remove(r.Context(), userID, productID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// CheckoutHandler handles POST /api/v1/checkout
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := a.checkoutService.PlaceOrder(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	orders, err := a.orderService.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "Invalid order ID")
	if !ok {
		return
	}

	order, err := a.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Orders are visible to their owner and to admins
	if order.UserID != userID {
		admin, err := a.userService.IsAdmin(r.Context(), userID)
		if err != nil || !admin {
			writeError(w, services.ErrForbidden)
			return
		}
	}

	writeJSON(w, http.StatusOK, order)
}

// CancelOrderHandler handles POST /api/v1/orders/{id}/cancel
func (a *App) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id", "Invalid order ID")
	if !ok {
		return
	}

	if err := a.orderService.CancelOrder(r.Context(), orderID, userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// UpdateOrderStatusHandler handles PUT /api/v1/orders/{id}/status.
// Admin only.
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id", "Invalid order ID")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	next := models.OrderStatus(req.Status)
	if !next.Valid() {
		http.Error(w, "Invalid order status", http.StatusBadRequest)
		return
	}

	if err := a.orderService.UpdateOrderStatus(r.Context(), orderID, next); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreateUserHandler handles POST /api/v1/users
func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	user, err := a.userService.CreateUser(r.Context(), req.Email, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrUserExists) {
			// Return the existing record so clients can recover the id
			if existing, lookupErr := a.userService.GetUserByEmail(r.Context(), req.Email); lookupErr == nil {
				writeJSON(w, http.StatusConflict, existing)
				return
			}
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// CreateProductHandler handles POST /api/v1/admin/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.productService.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler handles PUT /api/v1/admin/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid product ID")
	if !ok {
		return
	}

	var req models.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	product, err := a.productService.UpdateProduct(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /api/v1/admin/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid product ID")
	if !ok {
		return
	}

	if err := a.productService.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListAllOrdersHandler handles GET /api/v1/admin/orders
func (a *App) ListAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orderService.ListAllOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// ListUsersHandler handles GET /api/v1/admin/users
func (a *App) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := a.userService.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// UpdateUserRoleHandler handles PUT /api/v1/admin/users/{id}/role
func (a *App) UpdateUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid user ID")
	if !ok {
		return
	}

	var req models.UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := a.userService.UpdateUserRole(r.Context(), id, req.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler handles DELETE /api/v1/admin/users/{id}
func (a *App) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid user ID")
	if !ok {
		return
	}

	if err := a.userService.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetUserHandler handles GET /api/v1/users/{id}
func (a *App) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "Invalid user ID")
	if !ok {
		return
	}

	user, err := a.userService.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// adminOnly rejects callers without the administrative role before the
// wrapped handler runs
func (a *App) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		admin, err := a.userService.IsAdmin(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !admin {
			writeError(w, services.ErrForbidden)
			return
		}
		next(w, r)
	}
}

// listParams reads pagination query values, clamping them to sane bounds
// so malformed input never reaches the database
func listParams(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// requireUser resolves the caller's user id, writing a 401 when absent
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID := middleware.UserID(r)
	if userID == 0 {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		http.Error(w, message, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	var vErr *services.ValidationError
	var intentErr *services.PaymentIntentError
	var confirmErr *services.PaymentConfirmationError
	var persistErr *services.OrderPersistenceError

	switch {
	case errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCartItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrUnauthenticated):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrAlreadyInWishlist),
		errors.Is(err, services.ErrCheckoutInFlight),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrOrderNotCancellable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrEmptyCart),
		errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &confirmErr):
		http.Error(w, confirmErr.Message, http.StatusPaymentRequired)
	case errors.As(err, &intentErr):
		http.Error(w, "Payment service unavailable", http.StatusBadGateway)
	case errors.As(err, &persistErr):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
