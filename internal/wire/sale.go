package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/sale"
)

// EncodeSaleRequest renders the create-sale body.
func EncodeSaleRequest(r sale.Request) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range r.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		Decimal(&e, it.Quantity)
		e.FieldStart("price")
		Decimal(&e, it.Price)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("paymentMethod")
	e.Str(string(r.PaymentMethod))
	e.FieldStart("branchId")
	e.Str(r.BranchID)
	if r.CustomerID != "" {
		e.FieldStart("customerId")
		e.Str(r.CustomerID)
	}
	e.ObjEnd()
	return e.Bytes()
}

// DecodeSaleRequest parses a create-sale body.
func DecodeSaleRequest(data []byte) (sale.Request, error) {
	var r sale.Request
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var it sale.Item
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "productId":
						it.ProductID, err = ReadString(d)
					case "quantity":
						it.Quantity, err = ReadDecimal(d)
					case "price":
						it.Price, err = ReadDecimal(d)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				r.Items = append(r.Items, it)
				return nil
			})
		case "paymentMethod":
			s, err := d.Str()
			r.PaymentMethod = sale.PaymentMethod(s)
			return err
		case "branchId":
			s, err := ReadString(d)
			r.BranchID = s
			return err
		case "customerId":
			s, err := ReadString(d)
			r.CustomerID = s
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return sale.Request{}, errors.Wrap(err, "decode sale request")
	}
	return r, nil
}

// DecodeCreated parses the create-sale response. The sale may be wrapped
// in a "data" envelope or returned bare; both sale_number and saleNumber
// spellings are accepted.
func DecodeCreated(data []byte) (sale.Created, error) {
	var c sale.Created
	var decodeSale func(d *jx.Decoder, key string) error
	decodeSale = func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "data":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(decodeSale)
		case "id", "_id":
			c.ID, err = ReadString(d)
		case "saleNumber", "sale_number":
			c.SaleNumber, err = ReadString(d)
		default:
			err = d.Skip()
		}
		return err
	}
	if err := jx.DecodeBytes(data).Obj(decodeSale); err != nil {
		return sale.Created{}, errors.Wrap(err, "decode sale response")
	}
	if c.TransactionID() == "" {
		return sale.Created{}, errors.New("sale response has no identifier")
	}
	return c, nil
}
