// Package cart implements the register's cart ledger: ordered line items with
// price, quantity and total editing, line and cart discounts, and totals.
package cart

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound is returned when a line id is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidDiscount is returned for a discount outside its allowed range.
	ErrInvalidDiscount = errors.New("invalid discount")
)

var (
	// MinQuantity is the smallest quantity a line can hold.
	MinQuantity = decimal.RequireFromString("0.01")
	// WeightStep is the quantity step for weighed goods.
	WeightStep = decimal.RequireFromString("0.1")

	hundred = decimal.NewFromInt(100)
)

// Line is one addition to the cart. Lines are never merged.
type Line struct {
	ID        string
	ProductID string
	Name      string
	UnitName  string

	// OriginalUnitPrice is the catalog price at insertion time.
	OriginalUnitPrice decimal.Decimal
	// EffectiveUnitPrice drives every monetary figure of the line.
	EffectiveUnitPrice decimal.Decimal
	// DisplayPrice is what the price field shows. It differs from
	// EffectiveUnitPrice when the scan declared a total, and is never used
	// in totals.
	DisplayPrice decimal.Decimal

	Quantity        decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Total is EffectiveUnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.EffectiveUnitPrice.Mul(l.Quantity)
}

// IsWeighed reports whether the line's unit is a weight unit.
func (l Line) IsWeighed() bool {
	return isWeightUnit(l.UnitName)
}

// IncrementStep is the quantity step for unitName: 0.1 for weight units,
// 1 otherwise.
func IncrementStep(unitName string) decimal.Decimal {
	if isWeightUnit(unitName) {
		return WeightStep
	}
	return decimal.NewFromInt(1)
}

func isWeightUnit(unitName string) bool {
	u := strings.ToLower(strings.TrimSpace(unitName))
	if u == "g" {
		return true
	}
	for _, s := range []string{"kg", "kilogram", "gram"} {
		if strings.Contains(u, s) {
			return true
		}
	}
	return false
}

// Direction of a quantity step.
type Direction int

const (
	Decrease Direction = -1
	Increase Direction = 1
)

// parseField parses an edit field. Empty input, a lone dot and non-numeric
// text are invalid.
func parseField(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "." {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
