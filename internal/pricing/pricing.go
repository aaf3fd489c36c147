package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/shopforge/storefront-api/internal/models"
)

// Calculator derives order totals from cart line items.
// Rates are fixed at construction; totals are always computed live.
type Calculator struct {
	taxRate     decimal.Decimal
	shippingFee decimal.Decimal
}

// NewCalculator creates a calculator with the given tax rate (a fraction,
// e.g. 0.10 for 10%) and flat shipping fee
func NewCalculator(taxRate, shippingFee decimal.Decimal) Calculator {
	return Calculator{taxRate: taxRate, shippingFee: shippingFee}
}

// NewCalculatorFromStrings parses the configured rate strings; invalid
// values fall back to zero
func NewCalculatorFromStrings(taxRate, shippingFee string) Calculator {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		rate = decimal.Zero
	}
	fee, err := decimal.NewFromString(shippingFee)
	if err != nil {
		fee = decimal.Zero
	}
	return NewCalculator(rate, fee)
}

// Totals computes subtotal, tax, shipping and total for the given items:
// subtotal = sum(unit price * quantity), tax = subtotal * rate,
// total = subtotal + tax + shipping
func (c Calculator) Totals(items []models.LineItem) models.Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	tax := subtotal.Mul(c.taxRate)

	return models.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: c.shippingFee,
		Total:    subtotal.Add(tax).Add(c.shippingFee),
	}
}

// FormatAmount renders an amount as a fixed two-decimal display string
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatAmountPtr renders an optional amount; a missing amount formats as
// the zero-valued string rather than failing
func FormatAmountPtr(amount *decimal.Decimal) string {
	if amount == nil {
		return FormatAmount(decimal.Zero)
	}
	return FormatAmount(*amount)
}

// MinorUnits converts an amount to the integer minor-unit representation
// required by the payment processor, rounding half away from zero
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
