package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is an entry of the active catalog. The register treats it as
// read-only; the catalog is refreshed out-of-band by the sync worker.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Barcode   string
	Code      string
	SKU       string
	UnitID    string
	UnitName  string
}

// Keys returns the non-empty identifiers of the product in index order.
func (p Product) Keys() []string {
	keys := make([]string, 0, 3)
	for _, k := range []string{p.Barcode, p.Code, p.SKU} {
		if k := NormalizeKey(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Repository provides read and replace access to the locally cached catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ReplaceAll(ctx context.Context, products []Product) error
}
