// Package hold keeps suspended carts in memory so the operator can serve
// another customer and resume later. Holds do not survive a restart.
package hold

import (
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/cart"
)

var (
	// ErrEmptyCart is returned when holding an empty cart.
	ErrEmptyCart = errors.New("nothing to hold")
	// ErrHoldNotFound is returned for an index outside the holding list.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrDiscardRequired is returned when restoring over a non-empty cart
	// without confirmation that it may be discarded.
	ErrDiscardRequired = errors.New("active cart must be discarded first")
)

// Held is a suspended cart.
type Held struct {
	Lines    []cart.Line
	Customer cart.Customer
	HeldAt   time.Time
	Subtotal decimal.Decimal
}

// Registry is the ordered holding list.
type Registry struct {
	mux   sync.Mutex
	holds []Held
	now   func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Hold snapshots the ledger into the holding list and clears it.
func (r *Registry) Hold(l *cart.Ledger) (int, error) {
	if l.IsEmpty() {
		return 0, ErrEmptyCart
	}
	h := Held{Lines: l.Snapshot(), Customer: l.Customer(), HeldAt: r.now(), Subtotal: l.Subtotal()}

	r.mux.Lock()
	r.holds = append(r.holds, h)
	n := len(r.holds)
	r.mux.Unlock()

	l.Clear()
	return n - 1, nil
}

// List returns copies of the held carts in holding order.
func (r *Registry) List() []Held {
	r.mux.Lock()
	defer r.mux.Unlock()

	out := make([]Held, len(r.holds))
	for i, h := range r.holds {
		h.Lines = slices.Clone(h.Lines)
		out[i] = h
	}
	return out
}

// Len returns the number of held carts.
func (r *Registry) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.holds)
}

// Restore replaces the ledger's content with hold i and removes it from the
// list. Restoring over a non-empty cart discards that cart, so discard must
// be set in that case.
func (r *Registry) Restore(i int, l *cart.Ledger, discard bool) error {
	if !l.IsEmpty() && !discard {
		return ErrDiscardRequired
	}

	r.mux.Lock()
	if i < 0 || i >= len(r.holds) {
		r.mux.Unlock()
		return errors.Wrapf(ErrHoldNotFound, "index %d", i)
	}
	h := r.holds[i]
	r.holds = slices.Delete(r.holds, i, i+1)
	r.mux.Unlock()

	l.Restore(h.Lines, h.Customer)
	return nil
}

// Delete drops hold i.
func (r *Registry) Delete(i int) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if i < 0 || i >= len(r.holds) {
		return errors.Wrapf(ErrHoldNotFound, "index %d", i)
	}
	r.holds = slices.Delete(r.holds, i, i+1)
	return nil
}

// Clear drops every hold.
func (r *Registry) Clear() {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.holds = nil
}
