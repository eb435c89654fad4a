package cart

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/catalog"
)

// Ledger is the active cart. It is not safe for concurrent use; callers
// serialize access.
type Ledger struct {
	lines    []Line
	discount Discount
	customer Customer
	newID    func() string
}

// Customer is the buyer a sale is attributed to. The zero value is the walk-in
// customer.
type Customer struct {
	ID   string
	Name string
}

// IsZero reports whether no customer is selected.
func (c Customer) IsZero() bool { return c.ID == "" }

// MoneyPlaces is the precision of cart totals.
const MoneyPlaces = 2

// NewLedger returns an empty cart.
func NewLedger() *Ledger {
	return &Ledger{newID: uuid.NewString}
}

// Add appends a line for p. Without a declared total the quantity is at
// least 1. With a declared total and a priced product the quantity is derived
// from it, while the catalog price stays the effective unit price.
func (l *Ledger) Add(p catalog.Product, quantity decimal.Decimal, declaredTotal decimal.NullDecimal) Line {
	line := Line{
		ID:                 l.newID(),
		ProductID:          p.ID,
		Name:               p.Name,
		UnitName:           p.UnitName,
		OriginalUnitPrice:  p.UnitPrice,
		EffectiveUnitPrice: p.UnitPrice,
		DisplayPrice:       p.UnitPrice,
		Quantity:           decimal.Max(decimal.NewFromInt(1), quantity),
		DiscountPercent:    decimal.Zero,
	}
	if declaredTotal.Valid && p.UnitPrice.IsPositive() {
		line.Quantity = decimal.Max(MinQuantity, declaredTotal.Decimal.Div(p.UnitPrice))
		line.DisplayPrice = declaredTotal.Decimal
	}
	l.lines = append(l.lines, line)
	return line
}

// Lines returns a copy of the lines in insertion order.
func (l *Ledger) Lines() []Line {
	return slices.Clone(l.lines)
}

// Line returns the line with id.
func (l *Ledger) Line(id string) (Line, error) {
	i, err := l.find(id)
	if err != nil {
		return Line{}, err
	}
	return l.lines[i], nil
}

// Len returns the number of lines.
func (l *Ledger) Len() int { return len(l.lines) }

// IsEmpty reports whether the cart has no lines.
func (l *Ledger) IsEmpty() bool { return len(l.lines) == 0 }

// Remove deletes the line with id.
func (l *Ledger) Remove(id string) error {
	i, err := l.find(id)
	if err != nil {
		return err
	}
	l.lines = slices.Delete(l.lines, i, i+1)
	return nil
}

// Clear removes every line, the cart discount and the customer.
func (l *Ledger) Clear() {
	l.lines = nil
	l.discount = Discount{}
	l.customer = Customer{}
}

// SetCustomer attributes the cart to c. The zero Customer resets it to the
// walk-in customer.
func (l *Ledger) SetCustomer(c Customer) { l.customer = c }

// Customer returns the selected customer.
func (l *Ledger) Customer() Customer { return l.customer }

// StepQuantity moves the quantity one unit-aware step in dir, never below
// MinQuantity.
func (l *Ledger) StepQuantity(id string, dir Direction) (Line, error) {
	return l.update(id, func(line *Line) {
		step := IncrementStep(line.UnitName)
		if dir == Decrease {
			step = step.Neg()
		}
		line.Quantity = decimal.Max(MinQuantity, line.Quantity.Add(step))
	})
}

// SetQuantity applies the quantity field. Invalid or non-positive input
// resets the quantity to MinQuantity.
func (l *Ledger) SetQuantity(id, raw string) (Line, error) {
	return l.update(id, func(line *Line) {
		q, ok := parseField(raw)
		if !ok || !q.IsPositive() {
			line.Quantity = MinQuantity
			return
		}
		line.Quantity = decimal.Max(MinQuantity, q)
	})
}

// SetUnitPrice applies the price field. Invalid or non-positive input resets
// the price to the original unit price. A manual price replaces any line
// discount.
func (l *Ledger) SetUnitPrice(id, raw string) (Line, error) {
	return l.update(id, func(line *Line) {
		price, ok := parseField(raw)
		if !ok || !price.IsPositive() {
			price = line.OriginalUnitPrice
		}
		line.EffectiveUnitPrice = price
		line.DisplayPrice = price
		line.DiscountPercent = decimal.Zero
	})
}

// SetLineTotal applies the total field by recomputing the quantity from the
// current effective unit price. The price itself never changes. Invalid input
// or an unpriced line leaves the line as it was.
func (l *Ledger) SetLineTotal(id, raw string) (Line, error) {
	return l.update(id, func(line *Line) {
		total, ok := parseField(raw)
		if !ok || !total.IsPositive() || !line.EffectiveUnitPrice.IsPositive() {
			return
		}
		line.Quantity = decimal.Max(MinQuantity, total.Div(line.EffectiveUnitPrice))
	})
}

// ApplyLineDiscount sets the line's effective price to the original price
// less percent. Values outside [0, 100] are rejected without touching the line.
func (l *Ledger) ApplyLineDiscount(id string, percent decimal.Decimal) (Line, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return Line{}, errors.Wrapf(ErrInvalidDiscount, "line discount %s%%", percent)
	}
	return l.update(id, func(line *Line) {
		factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
		line.EffectiveUnitPrice = line.OriginalUnitPrice.Mul(factor)
		line.DisplayPrice = line.EffectiveUnitPrice
		line.DiscountPercent = percent
	})
}

// SetDiscount sets the cart discount. Percentages are clamped to [0, 100];
// a negative flat amount is rejected.
func (l *Ledger) SetDiscount(d Discount) error {
	switch d.Type {
	case DiscountPercentage:
		d.Value = decimal.Min(hundred, decimal.Max(decimal.Zero, d.Value))
	case DiscountAmount:
		if d.Value.IsNegative() {
			return errors.Wrapf(ErrInvalidDiscount, "discount amount %s", d.Value)
		}
	default:
		return errors.Wrapf(ErrInvalidDiscount, "discount type %q", d.Type)
	}
	l.discount = d
	return nil
}

// Discount returns the cart discount.
func (l *Ledger) Discount() Discount { return l.discount }

// Subtotal is the sum of line totals rounded to MoneyPlaces.
func (l *Ledger) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.lines {
		sum = sum.Add(line.Total())
	}
	return sum.Round(MoneyPlaces)
}

// DiscountAmount is the money the cart discount takes off the subtotal,
// rounded to MoneyPlaces.
func (l *Ledger) DiscountAmount() decimal.Decimal {
	return l.discount.Amount(l.Subtotal()).Round(MoneyPlaces)
}

// PayableTotal is max(0, subtotal - discount).
func (l *Ledger) PayableTotal() decimal.Decimal {
	return decimal.Max(decimal.Zero, l.Subtotal().Sub(l.DiscountAmount()))
}

// TotalQuantity sums line quantities.
func (l *Ledger) TotalQuantity() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range l.lines {
		sum = sum.Add(line.Quantity)
	}
	return sum
}

// Summary is a point-in-time view of the cart.
type Summary struct {
	Lines          []Line
	Discount       Discount
	Customer       Customer
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Payable        decimal.Decimal
	TotalQuantity  decimal.Decimal
}

// Summary returns the cart with its derived totals.
func (l *Ledger) Summary() Summary {
	subtotal := l.Subtotal()
	discount := l.DiscountAmount()
	return Summary{
		Lines:          l.Lines(),
		Discount:       l.discount,
		Customer:       l.customer,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Payable:        decimal.Max(decimal.Zero, subtotal.Sub(discount)),
		TotalQuantity:  l.TotalQuantity(),
	}
}

// Snapshot returns a deep copy of the lines.
func (l *Ledger) Snapshot() []Line {
	return l.Lines()
}

// Restore replaces the cart with lines attributed to c. The cart discount is
// cleared.
func (l *Ledger) Restore(lines []Line, c Customer) {
	l.lines = slices.Clone(lines)
	l.discount = Discount{}
	l.customer = c
}

func (l *Ledger) find(id string) (int, error) {
	i := slices.IndexFunc(l.lines, func(line Line) bool { return line.ID == id })
	if i < 0 {
		return -1, errors.Wrapf(ErrLineNotFound, "line %q", id)
	}
	return i, nil
}

func (l *Ledger) update(id string, fn func(line *Line)) (Line, error) {
	i, err := l.find(id)
	if err != nil {
		return Line{}, err
	}
	fn(&l.lines[i])
	return l.lines[i], nil
}
