package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, unit_price, barcode, code, sku, unit_id, unit_name
	FROM catalog_products ORDER BY position`

	maxPositionSQL = `SELECT COALESCE(MAX(position), 0) FROM catalog_products`

	upsertProductSQL = `INSERT INTO catalog_products
	(id, position, name, unit_price, barcode, code, sku, unit_id, unit_name, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	ON CONFLICT (id) DO UPDATE SET
		position = EXCLUDED.position,
		name = EXCLUDED.name,
		unit_price = EXCLUDED.unit_price,
		barcode = EXCLUDED.barcode,
		code = EXCLUDED.code,
		sku = EXCLUDED.sku,
		unit_id = EXCLUDED.unit_id,
		unit_name = EXCLUDED.unit_name,
		updated_at = now()`
)

var productColumns = []string{"id", "position", "name", "unit_price", "barcode", "code", "sku", "unit_id", "unit_name"}

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository caches the product catalog. Products keep the order they
// were written in, since index collisions resolve to the later product.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns the cached catalog in write order.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Barcode, &p.Code, &p.SKU, &p.UnitID, &p.UnitName)
		return p, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// ReplaceAll swaps the whole cached catalog for products.
func (r *CatalogRepository) ReplaceAll(ctx context.Context, products []catalog.Product) error {
	products = dedupeLast(products)
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceProducts(ctx, tx, products)
	})
}

func replaceProducts(ctx context.Context, tx pgx.Tx, products []catalog.Product) error {
	if _, err := tx.Exec(ctx, `DELETE FROM catalog_products`); err != nil {
		return errors.Wrap(err, "clear catalog")
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"catalog_products"}, productColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			return productRow(products[i], int64(i+1)), nil
		}),
	); err != nil {
		return errors.Wrap(err, "copy catalog")
	}
	return nil
}

// Upsert writes products after the existing ones, replacing rows with the
// same id. A replaced product moves to the end.
func (r *CatalogRepository) Upsert(ctx context.Context, products []catalog.Product) error {
	if len(products) == 0 {
		return nil
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var base int64
		if err := tx.QueryRow(ctx, maxPositionSQL).Scan(&base); err != nil {
			return errors.Wrap(err, "max position")
		}

		batch := &pgx.Batch{}
		for i, p := range products {
			batch.Queue(upsertProductSQL, productRow(p, base+int64(i+1))...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "upsert products")
		}
		return nil
	})
}

func productRow(p catalog.Product, position int64) []any {
	return []any{p.ID, position, p.Name, p.UnitPrice, p.Barcode, p.Code, p.SKU, p.UnitID, p.UnitName}
}

// dedupeLast keeps the last occurrence of every id, in order of that
// occurrence.
func dedupeLast(products []catalog.Product) []catalog.Product {
	last := make(map[string]int, len(products))
	for i, p := range products {
		last[p.ID] = i
	}
	if len(last) == len(products) {
		return products
	}
	out := make([]catalog.Product, 0, len(last))
	for i, p := range products {
		if last[p.ID] == i {
			out = append(out, p)
		}
	}
	return out
}
