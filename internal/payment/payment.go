package payment

import (
	"context"

	"github.com/shopforge/storefront-api/internal/models"
)

// Intent is an opaque processor-side handle for an in-progress charge,
// created before card details are confirmed
type Intent struct {
	ID           string
	ClientSecret string
}

// Confirmation is the processor's verdict on a charge attempt
type Confirmation struct {
	Status        string // "succeeded" or "failed"
	TransactionID string
	Message       string // processor error message, verbatim, when failed
}

// StatusSucceeded is the processor status for a completed charge
const StatusSucceeded = "succeeded"

// Succeeded reports whether the charge went through
func (c Confirmation) Succeeded() bool {
	return c.Status == StatusSucceeded
}

// Provider is the payment processor collaborator. CreateIntent reserves a
// charge for the given minor-unit amount; ConfirmPayment submits the card
// against a previously created intent.
type Provider interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (Intent, error)
	ConfirmPayment(ctx context.Context, clientSecret string, card models.CardDetails, billing models.ShippingInfo) (Confirmation, error)
}
