package cart

import "github.com/shopspring/decimal"

// DiscountType selects how a cart discount value is read.
type DiscountType string

const (
	// DiscountPercentage is a percentage of the subtotal, clamped to [0, 100].
	DiscountPercentage DiscountType = "percentage"
	// DiscountAmount is a flat amount off the subtotal.
	DiscountAmount DiscountType = "amount"
)

// Discount is the cart-level discount, applied once to the subtotal.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Amount returns the money taken off subtotal. The payable total clamps the
// result at zero, so an amount larger than the subtotal is allowed here.
func (d Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DiscountPercentage:
		return subtotal.Mul(d.Value).Div(hundred)
	case DiscountAmount:
		return d.Value
	default:
		return decimal.Zero
	}
}

// IsZero reports whether the discount takes nothing off.
func (d Discount) IsZero() bool {
	return d.Value.IsZero()
}
