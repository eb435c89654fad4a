package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/hold"
	"github.com/xenking/kart-pos/internal/domain/settlement"
	"github.com/xenking/kart-pos/internal/register"
	"github.com/xenking/kart-pos/internal/replay"
	"github.com/xenking/kart-pos/internal/wire"
)

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(l.ID)
	e.FieldStart("productId")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	if l.UnitName != "" {
		e.FieldStart("unitName")
		e.Str(l.UnitName)
	}
	e.FieldStart("originalUnitPrice")
	wire.Money(e, l.OriginalUnitPrice)
	e.FieldStart("unitPrice")
	wire.Money(e, l.EffectiveUnitPrice)
	e.FieldStart("displayPrice")
	wire.Money(e, l.DisplayPrice)
	e.FieldStart("quantity")
	wire.Decimal(e, l.Quantity)
	e.FieldStart("step")
	wire.Decimal(e, cart.IncrementStep(l.UnitName))
	e.FieldStart("weighed")
	e.Bool(l.IsWeighed())
	if !l.DiscountPercent.IsZero() {
		e.FieldStart("discountPercent")
		wire.Decimal(e, l.DiscountPercent)
	}
	e.FieldStart("total")
	wire.Money(e, l.Total())
	e.ObjEnd()
}

func encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.ArrStart()
	for _, l := range lines {
		encodeLine(e, l)
	}
	e.ArrEnd()
}

func encodeSummary(e *jx.Encoder, s cart.Summary) {
	e.ObjStart()
	e.FieldStart("lines")
	encodeLines(e, s.Lines)
	if !s.Discount.IsZero() {
		e.FieldStart("discount")
		e.ObjStart()
		e.FieldStart("type")
		e.Str(string(s.Discount.Type))
		e.FieldStart("value")
		wire.Decimal(e, s.Discount.Value)
		e.ObjEnd()
	}
	if !s.Customer.IsZero() {
		e.FieldStart("customer")
		encodeCustomer(e, s.Customer)
	}
	e.FieldStart("subtotal")
	wire.Money(e, s.Subtotal)
	e.FieldStart("discountAmount")
	wire.Money(e, s.DiscountAmount)
	e.FieldStart("payable")
	wire.Money(e, s.Payable)
	e.FieldStart("totalQuantity")
	wire.Decimal(e, s.TotalQuantity)
	e.ObjEnd()
}

func encodeCustomer(e *jx.Encoder, c cart.Customer) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	if c.Name != "" {
		e.FieldStart("name")
		e.Str(c.Name)
	}
	e.ObjEnd()
}

func encodeOutcome(e *jx.Encoder, o register.ScanOutcome) {
	e.ObjStart()
	e.FieldStart("outcome")
	e.Str(string(o.Kind))
	if o.Token.Raw != "" {
		e.FieldStart("token")
		e.ObjStart()
		e.FieldStart("raw")
		e.Str(o.Token.Raw)
		e.FieldStart("code")
		e.Str(o.Token.Code)
		if o.Token.HasDeclaredTotal() {
			e.FieldStart("declaredTotal")
			wire.Decimal(e, o.Token.DeclaredTotal.Decimal)
		}
		e.ObjEnd()
	}
	if o.Strategy != "" {
		e.FieldStart("strategy")
		e.Str(o.Strategy)
	}
	if o.Line != nil {
		e.FieldStart("line")
		encodeLine(e, *o.Line)
	}
	e.ObjEnd()
}

func encodeResult(e *jx.Encoder, r settlement.Result) {
	e.ObjStart()
	e.FieldStart("saleId")
	e.Str(r.SaleID)
	e.FieldStart("transactionId")
	e.Str(r.TransactionID)
	e.FieldStart("path")
	e.Str(string(r.Path))
	e.FieldStart("change")
	wire.Money(e, r.Change)
	e.FieldStart("printed")
	e.Bool(r.Printed)
	e.FieldStart("receipt")
	wire.Receipt(e, r.Receipt)
	e.ObjEnd()
}

func encodeHolds(e *jx.Encoder, holds []hold.Held) {
	e.ArrStart()
	for i, h := range holds {
		e.ObjStart()
		e.FieldStart("index")
		e.Int(i)
		e.FieldStart("heldAt")
		e.Str(h.HeldAt.Format(time.RFC3339))
		e.FieldStart("subtotal")
		wire.Money(e, h.Subtotal)
		if !h.Customer.IsZero() {
			e.FieldStart("customer")
			encodeCustomer(e, h.Customer)
		}
		e.FieldStart("lines")
		encodeLines(e, h.Lines)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeIntents(e *jx.Encoder, intents []register.Intent) {
	e.ArrStart()
	for _, in := range intents {
		e.ObjStart()
		e.FieldStart("kind")
		e.Str(string(in.Kind))
		if in.LineID != "" {
			e.FieldStart("lineId")
			e.Str(in.LineID)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeStatus(e *jx.Encoder, s replay.Status) {
	e.ObjStart()
	e.FieldStart("online")
	e.Bool(s.Online)
	e.FieldStart("syncing")
	e.Bool(s.Syncing)
	e.FieldStart("lastSync")
	if s.LastSync.IsZero() {
		e.Null()
	} else {
		e.Str(s.LastSync.Format(time.RFC3339))
	}
	e.FieldStart("pendingCount")
	e.Int(s.PendingCount)
	e.FieldStart("failedCount")
	e.Int(s.FailedCount)
	e.ObjEnd()
}
