// Package handler serves the register to the terminal UI as JSON over HTTP
// under /api.
package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/register"
	"github.com/xenking/kart-pos/internal/replay"
)

// Printers is the printer selection the UI manages.
type Printers interface {
	Available(ctx context.Context) ([]printer.Descriptor, error)
	Current() (printer.Descriptor, bool)
	Select(ctx context.Context, name string) (printer.Descriptor, error)
}

// Sync exposes the offline replay worker.
type Sync interface {
	Status(ctx context.Context) (replay.Status, error)
	Trigger()
}

// Handler routes API requests to the register.
type Handler struct {
	reg      *register.Register
	printers Printers
	sync     Sync
}

// New creates a Handler.
func New(reg *register.Register, printers Printers, sync Sync) *Handler {
	return &Handler{reg: reg, printers: printers, sync: sync}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/scan", h.scan)
	mux.HandleFunc("POST /api/input", h.input)
	mux.HandleFunc("POST /api/input/submit", h.submit)
	mux.HandleFunc("GET /api/intents", h.intents)

	mux.HandleFunc("GET /api/cart", h.cart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("PUT /api/cart/discount", h.setDiscount)
	mux.HandleFunc("PUT /api/cart/customer", h.setCustomer)
	mux.HandleFunc("DELETE /api/cart/customer", h.clearCustomer)
	mux.HandleFunc("POST /api/cart/lines/{id}/increment", h.stepLine(1))
	mux.HandleFunc("POST /api/cart/lines/{id}/decrement", h.stepLine(-1))
	mux.HandleFunc("PUT /api/cart/lines/{id}/quantity", h.editLine(h.reg.SetQuantity))
	mux.HandleFunc("PUT /api/cart/lines/{id}/price", h.editLine(h.reg.SetUnitPrice))
	mux.HandleFunc("PUT /api/cart/lines/{id}/total", h.editLine(h.reg.SetLineTotal))
	mux.HandleFunc("PUT /api/cart/lines/{id}/discount", h.lineDiscount)
	mux.HandleFunc("DELETE /api/cart/lines/{id}", h.removeLine)

	mux.HandleFunc("GET /api/payment", h.paymentState)
	mux.HandleFunc("POST /api/payment/start", h.startPayment)
	mux.HandleFunc("POST /api/payment/cancel", h.cancelPayment)
	mux.HandleFunc("POST /api/payment/confirm", h.confirmPayment)

	mux.HandleFunc("GET /api/holds", h.listHolds)
	mux.HandleFunc("POST /api/holds", h.hold)
	mux.HandleFunc("DELETE /api/holds", h.clearHolds)
	mux.HandleFunc("POST /api/holds/{index}/restore", h.restoreHold)
	mux.HandleFunc("DELETE /api/holds/{index}", h.deleteHold)

	mux.HandleFunc("GET /api/printers", h.listPrinters)
	mux.HandleFunc("PUT /api/printers/current", h.selectPrinter)

	mux.HandleFunc("GET /api/sync", h.syncStatus)
	mux.HandleFunc("POST /api/sync", h.triggerSync)
}

// readObject decodes a JSON object body field by field. An empty body reads
// as an empty object.
func readObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		return badRequest("invalid body: %v", err)
	}
	return nil
}

func holdIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		return 0, badRequest("invalid hold index %q", r.PathValue("index"))
	}
	return i, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// requestError is a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}
