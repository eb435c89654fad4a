package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-pos/internal/domain/catalog"
)

// ReadProduct decodes one catalog product. Field names follow the backend's
// mixed conventions: id or _id or product_id, name or product_name,
// price or unitPrice or sale_price or selling_price, unitId or unit_id,
// unitName or unit_name, and a "unit" given as a name or an {id, name} object.
func ReadProduct(d *jx.Decoder) (catalog.Product, error) {
	var p catalog.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id", "product_id":
			var id string
			if id, err = ReadString(d); err == nil && p.ID == "" {
				p.ID = id
			}
		case "name", "product_name":
			var name string
			if name, err = ReadString(d); err == nil && p.Name == "" {
				p.Name = name
			}
		case "price", "unitPrice", "unit_price", "sale_price", "selling_price":
			price, rerr := ReadDecimal(d)
			if rerr != nil {
				return rerr
			}
			if p.UnitPrice.IsZero() {
				p.UnitPrice = price
			}
		case "barcode":
			p.Barcode, err = ReadString(d)
		case "code":
			p.Code, err = ReadString(d)
		case "sku":
			p.SKU, err = ReadString(d)
		case "unitId", "unit_id":
			p.UnitID, err = ReadString(d)
		case "unitName", "unit_name":
			p.UnitName, err = ReadString(d)
		case "unit":
			err = readUnit(d, &p)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return catalog.Product{}, err
	}
	if p.ID == "" {
		return catalog.Product{}, errors.New("product without id")
	}
	return p, nil
}

func readUnit(d *jx.Decoder, p *catalog.Product) error {
	switch d.Next() {
	case jx.Object:
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id", "_id":
				var id string
				if id, err = ReadString(d); err == nil && p.UnitID == "" {
					p.UnitID = id
				}
			case "name":
				var name string
				if name, err = ReadString(d); err == nil && p.UnitName == "" {
					p.UnitName = name
				}
			default:
				err = d.Skip()
			}
			return err
		})
	case jx.String:
		name, err := d.Str()
		if err == nil && p.UnitName == "" {
			p.UnitName = name
		}
		return err
	default:
		return d.Skip()
	}
}

// DecodeProducts parses a product list returned bare or in a "data" or
// "products" envelope.
func DecodeProducts(data []byte) ([]catalog.Product, error) {
	d := jx.DecodeBytes(data)
	var out []catalog.Product
	readList := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			p, err := ReadProduct(d)
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
			if (key == "data" || key == "products") && d.Next() == jx.Array {
				return readList(d)
			}
			return d.Skip()
		})
	default:
		err = errors.Errorf("unexpected %s for product list", d.Next())
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

// EncodeProduct writes p with the canonical field names.
func EncodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	Decimal(e, p.UnitPrice)
	for _, f := range []struct{ name, value string }{
		{"barcode", p.Barcode},
		{"code", p.Code},
		{"sku", p.SKU},
		{"unitId", p.UnitID},
		{"unitName", p.UnitName},
	} {
		if f.value != "" {
			e.FieldStart(f.name)
			e.Str(f.value)
		}
	}
	e.ObjEnd()
}
