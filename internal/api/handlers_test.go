package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/shopforge/storefront-api/internal/db"
	"github.com/shopforge/storefront-api/internal/metrics"
	"github.com/shopforge/storefront-api/internal/services"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"product not found", services.ErrProductNotFound, http.StatusNotFound},
		{"order not found", services.ErrOrderNotFound, http.StatusNotFound},
		{"cart item not found", services.ErrCartItemNotFound, http.StatusNotFound},
		{"unauthenticated", services.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"duplicate user", services.ErrUserExists, http.StatusConflict},
		{"already in wishlist", services.ErrAlreadyInWishlist, http.StatusConflict},
		{"checkout in flight", services.ErrCheckoutInFlight, http.StatusConflict},
		{"insufficient stock", services.ErrInsufficientStock, http.StatusConflict},
		{"invalid transition", services.ErrInvalidTransition, http.StatusConflict},
		{"not cancellable", services.ErrOrderNotCancellable, http.StatusConflict},
		{"invalid quantity", services.ErrInvalidQuantity, http.StatusBadRequest},
		{"empty cart", services.ErrEmptyCart, http.StatusBadRequest},
		{"shipping validation", &services.ValidationError{Field: "city"}, http.StatusBadRequest},
		{"card declined", &services.PaymentConfirmationError{Message: "Your card was declined."}, http.StatusPaymentRequired},
		{"intent failure", &services.PaymentIntentError{Err: fmt.Errorf("timeout")}, http.StatusBadGateway},
		{"order write failure", &services.OrderPersistenceError{TransactionID: "pi_1", Err: fmt.Errorf("db down")}, http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteErrorSurfacesDeclineMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &services.PaymentConfirmationError{Message: "Your card has insufficient funds."})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your card has insufficient funds.")
}

func TestRequireUser(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/cart", nil)
		r.Header.Set("X-User-ID", "42")
		rec := httptest.NewRecorder()

		userID, ok := requireUser(rec, r)
		assert.True(t, ok)
		assert.Equal(t, int64(42), userID)
	})

	t.Run("query fallback", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/cart?user_id=7", nil)
		rec := httptest.NewRecorder()

		userID, ok := requireUser(rec, r)
		assert.True(t, ok)
		assert.Equal(t, int64(7), userID)
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/cart", nil)
		rec := httptest.NewRecorder()

		_, ok := requireUser(rec, r)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/cart", nil)
		r.Header.Set("X-User-ID", "not-a-number")
		rec := httptest.NewRecorder()

		_, ok := requireUser(rec, r)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestListParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 20, 0},
		{"explicit values", "limit=5&offset=10", 5, 10},
		{"negative limit falls back", "limit=-3", 20, 0},
		{"negative offset falls back", "offset=-7", 20, 0},
		{"zero limit falls back", "limit=0", 20, 0},
		{"limit capped", "limit=500", 100, 0},
		{"garbage ignored", "limit=abc&offset=xyz", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/products?"+tt.query, nil)
			limit, offset := listParams(r)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func newAdminTestApp(t *testing.T) (*App, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "test")
	require.NoError(t, err)

	database := db.WrapDB(sqlDB, "test")
	return &App{
		metrics:     m,
		userService: services.NewUserService(database, m),
	}, mock
}

func userRoleRow(isAdmin bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name", "is_admin", "created_at"}).
		AddRow(int64(1), "user@example.com", "Test User", isAdmin, time.Now())
}

func TestAdminOnly(t *testing.T) {
	t.Run("non-admin rejected", func(t *testing.T) {
		app, mock := newAdminTestApp(t)
		mock.ExpectQuery("FROM users WHERE id").WillReturnRows(userRoleRow(false))

		called := false
		handler := app.adminOnly(func(w http.ResponseWriter, r *http.Request) { called = true })

		r := httptest.NewRequest("GET", "/api/v1/admin/orders", nil)
		r.Header.Set("X-User-ID", "1")
		rec := httptest.NewRecorder()
		handler(rec, r)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, called)
	})

	t.Run("admin passes through", func(t *testing.T) {
		app, mock := newAdminTestApp(t)
		mock.ExpectQuery("FROM users WHERE id").WillReturnRows(userRoleRow(true))

		called := false
		handler := app.adminOnly(func(w http.ResponseWriter, r *http.Request) { called = true })

		r := httptest.NewRequest("GET", "/api/v1/admin/orders", nil)
		r.Header.Set("X-User-ID", "1")
		rec := httptest.NewRecorder()
		handler(rec, r)

		assert.True(t, called)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		app, _ := newAdminTestApp(t)

		handler := app.adminOnly(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/api/v1/admin/orders", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSetupRoutesRegistersAdminEndpoints(t *testing.T) {
	app, _ := newAdminTestApp(t)
	router := mux.NewRouter()
	app.SetupRoutes(router)

	registered := map[string]bool{}
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			registered[m+" "+tmpl] = true
		}
		return nil
	})
	require.NoError(t, err)

	want := []string{
		"POST /api/v1/admin/products",
		"PUT /api/v1/admin/products/{id}",
		"DELETE /api/v1/admin/products/{id}",
		"GET /api/v1/admin/orders",
		"GET /api/v1/admin/users",
		"PUT /api/v1/admin/users/{id}/role",
		"DELETE /api/v1/admin/users/{id}",
	}
	for _, route := range want {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestHealthHandler(t *testing.T) {
	app := &App{}
	rec := httptest.NewRecorder()
	app.HealthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
