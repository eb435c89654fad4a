package catalog

import "strings"

// Collision records two products sharing one lookup key. The later product
// in catalog order owns the key.
type Collision struct {
	Key      string
	Previous string
	Winner   string
}

// Index is a case-insensitive lookup over barcode, code and SKU. It is a
// pure function of the catalog and is rebuilt whenever the catalog changes.
type Index struct {
	products   []Product
	byKey      map[string]int
	collisions []Collision
}

// NormalizeKey trims and lower-cases an identifier.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// NewIndex builds an Index over products. When two products share a key the
// later one wins; every such overwrite is recorded in Collisions.
func NewIndex(products []Product) *Index {
	idx := &Index{
		products: products,
		byKey:    make(map[string]int, len(products)*2),
	}
	for i, p := range products {
		for _, key := range p.Keys() {
			if prev, ok := idx.byKey[key]; ok && products[prev].ID != p.ID {
				idx.collisions = append(idx.collisions, Collision{
					Key:      key,
					Previous: products[prev].ID,
					Winner:   p.ID,
				})
			}
			idx.byKey[key] = i
		}
	}
	return idx
}

// Lookup returns the product owning key after normalization.
func (idx *Index) Lookup(key string) (Product, bool) {
	if idx == nil {
		return Product{}, false
	}
	i, ok := idx.byKey[NormalizeKey(key)]
	if !ok {
		return Product{}, false
	}
	return idx.products[i], true
}

// Products returns the catalog in its original order.
func (idx *Index) Products() []Product {
	if idx == nil {
		return nil
	}
	return idx.products
}

// Len returns the number of distinct keys.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byKey)
}

// Collisions returns the key overwrites detected while building the index.
func (idx *Index) Collisions() []Collision {
	if idx == nil {
		return nil
	}
	return idx.collisions
}
