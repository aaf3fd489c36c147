package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/paymentmethod"

	"github.com/shopforge/storefront-api/internal/models"
)

// StripeProvider implements Provider against the Stripe API
type StripeProvider struct{}

// NewStripeProvider configures the Stripe client with the secret key
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{}
}

var _ Provider = (*StripeProvider)(nil)

// CreateIntent creates a payment intent for the given minor-unit amount
func (p *StripeProvider) CreateIntent(ctx context.Context, amountMinorUnits int64, currency string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinorUnits),
		Currency: stripe.String(currency),
		Metadata: map[string]string{
			"company": "storefront",
		},
	}
	params.Context = ctx

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ConfirmPayment builds a payment method from the raw card details and
// confirms the intent identified by the client secret. Card declines come
// back as a failed Confirmation carrying the processor's message; only
// transport-level problems are returned as errors.
func (p *StripeProvider) ConfirmPayment(ctx context.Context, clientSecret string, card models.CardDetails, billing models.ShippingInfo) (Confirmation, error) {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return Confirmation{}, err
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(card.ExpMonth),
			ExpYear:  stripe.Int64(card.ExpYear),
			CVC:      stripe.String(card.CVC),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name: stripe.String(card.Name),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(billing.Address),
				City:       stripe.String(billing.City),
				State:      stripe.String(billing.State),
				Country:    stripe.String(countryCode(billing.Country)),
				PostalCode: stripe.String(billing.PostalCode),
			},
		},
	}
	pmParams.Context = ctx

	pm, err := paymentmethod.New(pmParams)
	if err != nil {
		if confirmation, ok := declineConfirmation(err); ok {
			return confirmation, nil
		}
		return Confirmation{}, fmt.Errorf("failed to create payment method: %w", err)
	}

	confirmParams := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(pm.ID),
	}
	confirmParams.Context = ctx

	pi, err := paymentintent.Confirm(intentID, confirmParams)
	if err != nil {
		if confirmation, ok := declineConfirmation(err); ok {
			return confirmation, nil
		}
		return Confirmation{}, fmt.Errorf("failed to confirm payment: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Confirmation{
			Status:        "failed",
			TransactionID: pi.ID,
			Message:       fmt.Sprintf("payment not completed: intent status %s", pi.Status),
		}, nil
	}

	return Confirmation{
		Status:        StatusSucceeded,
		TransactionID: pi.ID,
	}, nil
}

// declineConfirmation converts a Stripe card error into a failed
// Confirmation with the processor's message kept verbatim
func declineConfirmation(err error) (Confirmation, bool) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return Confirmation{Status: "failed", Message: stripeErr.Msg}, true
	}
	return Confirmation{}, false
}

// intentIDFromClientSecret recovers the intent ID from a client secret of
// the form "pi_xxx_secret_yyy"
func intentIDFromClientSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx < 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:idx], nil
}

// countryNames maps the country names collected on the shipping form to
// the ISO codes Stripe expects; unknown values pass through unchanged
var countryNames = map[string]string{
	"India":          "IN",
	"United States":  "US",
	"United Kingdom": "GB",
	"Canada":         "CA",
	"Australia":      "AU",
}

func countryCode(name string) string {
	if code, ok := countryNames[name]; ok {
		return code
	}
	return name
}
