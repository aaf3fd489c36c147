package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCartItemNotFound is returned when a quantity update references a
	// product that is not in the cart
	ErrCartItemNotFound = errors.New("cart item not found")

	// ErrInvalidQuantity rejects quantity updates below one; the update is
	// refused, not clamped
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrAlreadyInWishlist signals that the product is already saved
	ErrAlreadyInWishlist = errors.New("item already in wishlist")

	// ErrEmptyCart aborts a checkout before any external call
	ErrEmptyCart = errors.New("cart is empty")

	// ErrUnauthenticated aborts a checkout for an anonymous caller
	ErrUnauthenticated = errors.New("authentication required")

	// ErrCheckoutInFlight rejects a second checkout submission while the
	// first is still awaiting the processor
	ErrCheckoutInFlight = errors.New("checkout already in progress")

	// ErrInsufficientStock rejects a checkout when the catalog cannot cover
	// a requested quantity
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrProductNotFound is returned for an unknown catalog product
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderNotFound is returned for an unknown order
	ErrOrderNotFound = errors.New("order not found")

	// ErrUserNotFound is returned for an unknown user
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when an email is already registered
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidTransition rejects a disallowed order status change
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderNotCancellable rejects cancellation of an order that has
	// left the Processing state
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")

	// ErrForbidden rejects an operation on another user's order
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports a missing or invalid checkout field, caught
// before any external call
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// PaymentIntentError means the processor rejected intent creation; the
// cart is untouched and no order exists
type PaymentIntentError struct {
	Err error
}

func (e *PaymentIntentError) Error() string {
	return fmt.Sprintf("payment intent creation failed: %v", e.Err)
}

func (e *PaymentIntentError) Unwrap() error { return e.Err }

// PaymentConfirmationError carries the processor's decline message
// verbatim; no order exists and no charge is retained
type PaymentConfirmationError struct {
	Message string
}

func (e *PaymentConfirmationError) Error() string {
	return e.Message
}

// OrderPersistenceError means the charge succeeded but the order write
// failed. The charge is NOT reversed automatically; TransactionID is kept
// for manual reconciliation.
type OrderPersistenceError struct {
	TransactionID string
	Err           error
}

func (e *OrderPersistenceError) Error() string {
	return fmt.Sprintf("order persistence failed after successful charge %s: %v", e.TransactionID, e.Err)
}

func (e *OrderPersistenceError) Unwrap() error { return e.Err }
