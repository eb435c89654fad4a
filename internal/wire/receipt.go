package wire

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
)

// EncodePrintRequest renders the print-server body
// {printer, job, receiptData}.
func EncodePrintRequest(p printer.Descriptor, r sale.Receipt, job printer.Job) []byte {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("printer")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(p.Name)
	if p.Profile != nil {
		e.FieldStart("columns")
		e.ObjStart()
		e.FieldStart("fontA")
		e.Int(p.Profile.Columns.FontA)
		e.FieldStart("fontB")
		e.Int(p.Profile.Columns.FontB)
		e.ObjEnd()
	}
	e.ObjEnd()

	e.FieldStart("job")
	e.ObjStart()
	e.FieldStart("copies")
	e.Int(max(1, job.Copies))
	e.FieldStart("cut")
	e.Bool(job.Cut)
	e.FieldStart("openDrawer")
	e.Bool(job.OpenDrawer)
	e.ObjEnd()

	e.FieldStart("receiptData")
	Receipt(&e, r)

	e.ObjEnd()
	return e.Bytes()
}

// Receipt writes the receipt projection as an object.
func Receipt(e *jx.Encoder, r sale.Receipt) {
	e.ObjStart()
	str := func(name, v string) {
		if v != "" {
			e.FieldStart(name)
			e.Str(v)
		}
	}
	str("storeName", r.StoreName)
	str("address", r.Address)
	e.FieldStart("transactionId")
	e.Str(r.TransactionID)
	e.FieldStart("timestamp")
	e.Str(r.Timestamp.Format(time.RFC3339))
	str("cashier", r.Cashier)
	str("customerType", r.CustomerType)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range r.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		Decimal(e, it.Quantity)
		e.FieldStart("price")
		Money(e, it.Price)
		if it.Unit != "" {
			e.FieldStart("unit")
			e.Str(it.Unit)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	Money(e, r.Subtotal)
	if !r.Discount.IsZero() {
		e.FieldStart("discount")
		Money(e, r.Discount)
	}
	e.FieldStart("total")
	Money(e, r.Total)
	e.FieldStart("paymentMethod")
	e.Str(string(r.PaymentMethod))
	e.FieldStart("amountPaid")
	Money(e, r.AmountPaid)
	if !r.ChangeAmount.IsZero() {
		e.FieldStart("changeAmount")
		Money(e, r.ChangeAmount)
	}
	e.ObjEnd()
}

// DecodePrinters parses a printer list returned bare or in a "data" or
// "printers" envelope.
func DecodePrinters(data []byte) ([]printer.Descriptor, error) {
	d := jx.DecodeBytes(data)
	var out []printer.Descriptor
	readList := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			p, err := readPrinter(d)
			if err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	}

	var err error
	switch d.Next() {
	case jx.Array:
		err = readList(d)
	case jx.Object:
		err = d.Obj(func(d *jx.Decoder, key string) error {
			if (key == "data" || key == "printers") && d.Next() == jx.Array {
				return readList(d)
			}
			return d.Skip()
		})
	default:
		err = errors.Errorf("unexpected %s for printer list", d.Next())
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode printers")
	}
	return out, nil
}

// Printer writes a printer descriptor in the shape DecodePrinters reads.
func Printer(e *jx.Encoder, p printer.Descriptor) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("isDefault")
	e.Bool(p.IsDefault)
	if p.LanguageHint != "" {
		e.FieldStart("languageHint")
		e.Str(p.LanguageHint)
	}
	if prof := p.Profile; prof != nil {
		e.FieldStart("receiptProfile")
		e.ObjStart()
		if prof.Roll != "" {
			e.FieldStart("roll")
			e.Str(prof.Roll)
		}
		e.FieldStart("printableWidthMm")
		e.Int(prof.PrintableWidthMM)
		e.FieldStart("columns")
		e.ObjStart()
		e.FieldStart("fontA")
		e.Int(prof.Columns.FontA)
		e.FieldStart("fontB")
		e.Int(prof.Columns.FontB)
		e.ObjEnd()
		e.ObjEnd()
	}
	e.ObjEnd()
}

func readPrinter(d *jx.Decoder) (printer.Descriptor, error) {
	var p printer.Descriptor
	if d.Next() == jx.String {
		name, err := d.Str()
		p.Name = name
		return p, err
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			p.Name, err = d.Str()
		case "isDefault":
			p.IsDefault, err = d.Bool()
		case "languageHint", "language":
			p.LanguageHint, err = ReadString(d)
		case "receiptProfile":
			err = readProfile(d, &p)
		case "columns":
			if p.Profile == nil {
				p.Profile = &printer.ReceiptProfile{}
			}
			err = readColumns(d, &p.Profile.Columns)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func readProfile(d *jx.Decoder, p *printer.Descriptor) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	if p.Profile == nil {
		p.Profile = &printer.ReceiptProfile{}
	}
	prof := p.Profile
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "roll":
			prof.Roll, err = ReadString(d)
		case "printableWidthMm", "printableWidthMM":
			prof.PrintableWidthMM, err = d.Int()
		case "columns":
			err = readColumns(d, &prof.Columns)
		default:
			err = d.Skip()
		}
		return err
	})
}

func readColumns(d *jx.Decoder, c *printer.Columns) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "fontA":
			c.FontA, err = d.Int()
		case "fontB":
			c.FontB, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
}
