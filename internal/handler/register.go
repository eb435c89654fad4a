package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/wire"
)

// readText reads the single text field of a body, as a string or a number.
func readText(r *http.Request, field string) (string, error) {
	var text string
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		var err error
		text, err = wire.ReadString(d)
		return err
	})
	return text, err
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	raw, err := readText(r, "raw")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOutcome(&e, h.reg.Scan(r.Context(), raw))
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) input(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r, "text")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.reg.Type(text)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r, "text")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeOutcome(&e, h.reg.Submit(r.Context(), text))
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) intents(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	encodeIntents(&e, h.reg.Intents())
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) writeCart(w http.ResponseWriter) {
	var e jx.Encoder
	encodeSummary(&e, h.reg.Cart())
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) cart(w http.ResponseWriter, _ *http.Request) {
	h.writeCart(w)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.ClearCart(); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var d cart.Discount
	err := readObject(r, func(d2 *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			var s string
			s, err = d2.Str()
			d.Type = cart.DiscountType(s)
		case "value":
			d.Value, err = wire.ReadDecimal(d2)
		default:
			err = d2.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if d.Type == "" {
		d.Type = cart.DiscountPercentage
	}
	if err := h.reg.SetDiscount(d); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	var c cart.Customer
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = wire.ReadString(d)
		case "name":
			c.Name, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.reg.SetCustomer(c); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) clearCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.ClearCustomer(); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) writeLine(w http.ResponseWriter, l cart.Line) {
	var e jx.Encoder
	encodeLine(&e, l)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) stepLine(dir cart.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := h.reg.StepQuantity(r.PathValue("id"), dir)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.writeLine(w, l)
	}
}

// editLine serves the raw-text field edits: quantity, unit price and total.
func (h *Handler) editLine(edit func(lineID, raw string) (cart.Line, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := readText(r, "value")
		if err != nil {
			writeError(w, r, err)
			return
		}
		l, err := edit(r.PathValue("id"), raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.writeLine(w, l)
	}
}

func (h *Handler) lineDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		percent decimal.Decimal
		seen    bool
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != "percent" {
			return d.Skip()
		}
		seen = true
		var err error
		percent, err = wire.ReadDecimal(d)
		return err
	})
	if err == nil && !seen {
		err = badRequest("percent is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.reg.ApplyLineDiscount(r.PathValue("id"), percent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeLine(w, l)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.RemoveLine(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) writeState(w http.ResponseWriter, payable string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("state")
	e.Str(h.reg.PaymentState().String())
	if payable != "" {
		e.FieldStart("payable")
		e.Num(jx.Num(payable))
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) paymentState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w, "")
}

func (h *Handler) startPayment(w http.ResponseWriter, r *http.Request) {
	raw, err := readText(r, "method")
	if err != nil {
		writeError(w, r, err)
		return
	}
	method, err := sale.ParsePaymentMethod(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payable, err := h.reg.StartPayment(method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, payable)
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.reg.CancelPayment(); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeState(w, "")
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	tendered, err := readText(r, "tendered")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.reg.ConfirmPayment(r.Context(), tendered)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeResult(&e, res)
	writeJSON(w, http.StatusOK, &e)
}
