package settlement

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned when payment starts on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidState is returned for an operation the current state does not allow.
	ErrInvalidState = errors.New("invalid settlement state")
	// ErrInsufficientTender is returned when the tendered amount does not
	// cover the payable total or is not a number.
	ErrInsufficientTender = errors.New("insufficient tender")
	// ErrInvalidTender is matched, together with ErrInsufficientTender, when
	// the tendered amount is not a number.
	ErrInvalidTender = errors.New("tender is not a number")
)

// InsufficientTenderError reports a rejected tender.
type InsufficientTenderError struct {
	Raw      string
	Tendered decimal.Decimal
	Payable  decimal.Decimal
	// NotANumber is set when Raw did not parse.
	NotANumber bool
}

func (e *InsufficientTenderError) Error() string {
	if e.NotANumber {
		return fmt.Sprintf("insufficient tender: %q is not a number", e.Raw)
	}
	return fmt.Sprintf("insufficient tender: %s < %s", e.Tendered.StringFixed(2), e.Payable.StringFixed(2))
}

func (e *InsufficientTenderError) Is(target error) bool {
	switch target {
	case ErrInsufficientTender:
		return true
	case ErrInvalidTender:
		return e.NotANumber
	default:
		return false
	}
}

// StateError reports an operation attempted in the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }
