package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/hold"
	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/domain/settlement"
	"github.com/xenking/kart-pos/internal/register"
)

// errorStatus maps an error to its HTTP status and machine-readable code.
func errorStatus(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, cart.ErrLineNotFound), errors.Is(err, hold.ErrHoldNotFound),
		errors.Is(err, printer.ErrUnknownPrinter):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, register.ErrSettlementInFlight):
		return http.StatusConflict, "settlement_in_flight"
	case errors.Is(err, hold.ErrDiscardRequired):
		return http.StatusConflict, "discard_required"
	case errors.Is(err, settlement.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, settlement.ErrInvalidTender):
		return http.StatusUnprocessableEntity, "invalid_tender"
	case errors.Is(err, settlement.ErrInsufficientTender):
		return http.StatusUnprocessableEntity, "insufficient_tender"
	case errors.Is(err, settlement.ErrEmptyCart), errors.Is(err, hold.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, cart.ErrInvalidDiscount):
		return http.StatusUnprocessableEntity, "invalid_discount"
	case errors.Is(err, register.ErrInvalidCustomer):
		return http.StatusUnprocessableEntity, "invalid_customer"
	case errors.Is(err, sale.ErrUnknownPaymentMethod):
		return http.StatusUnprocessableEntity, "unknown_payment_method"
	case errors.Is(err, printer.ErrNoPrinters):
		return http.StatusServiceUnavailable, "no_printers"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}
