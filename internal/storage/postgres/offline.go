package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/sale"
)

const (
	insertSaleSQL = `INSERT INTO offline_sales
	(id, total, customer_id, payment_method, amount_paid, change_amount, employee_id, branch_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

	unsyncedSalesSQL = `SELECT id, total, customer_id, payment_method, amount_paid, change_amount,
	employee_id, branch_id, created_at
	FROM offline_sales WHERE NOT synced ORDER BY created_at, id`

	saleItemsSQL = `SELECT sale_id, product_id, name, unit_name, quantity, price
	FROM offline_sale_items WHERE sale_id = ANY($1) ORDER BY sale_id, line_no`

	markSyncedSQL = `UPDATE offline_sales SET synced = TRUE, synced_at = $2 WHERE id = $1`

	countUnsyncedSQL = `SELECT count(*) FROM offline_sales WHERE NOT synced`
)

var itemColumns = []string{"sale_id", "line_no", "product_id", "name", "unit_name", "quantity", "price"}

var _ sale.OfflineStore = (*OfflineSaleStore)(nil)

// OfflineSaleStore keeps sales that were settled without the backend.
type OfflineSaleStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewOfflineSaleStore returns an OfflineSaleStore that uses the given pool.
func NewOfflineSaleStore(pool *pgxpool.Pool) *OfflineSaleStore {
	return &OfflineSaleStore{pool: pool, now: time.Now}
}

// SaveSale stores rec with its items. Saving an id twice keeps the first
// record.
func (s *OfflineSaleStore) SaveSale(ctx context.Context, rec sale.OfflineRecord) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		return insertSale(ctx, tx, rec)
	})
}

func insertSale(ctx context.Context, tx pgx.Tx, rec sale.OfflineRecord) error {
	tag, err := tx.Exec(ctx, insertSaleSQL,
		rec.ID, rec.Total, rec.CustomerID, string(rec.Payment.Method),
		rec.Payment.AmountPaid, rec.Payment.ChangeAmount,
		rec.EmployeeID, rec.BranchID, rec.Timestamp,
	)
	if err != nil {
		return errors.Wrapf(err, "insert sale %q", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"offline_sale_items"}, itemColumns,
		pgx.CopyFromSlice(len(rec.Items), func(i int) ([]any, error) {
			it := rec.Items[i]
			return []any{rec.ID, i, it.ProductID, it.Name, it.UnitName, it.Quantity, it.Price}, nil
		}),
	); err != nil {
		return errors.Wrapf(err, "insert items of sale %q", rec.ID)
	}
	return nil
}

// UnsyncedSales returns the sales not yet accepted by the backend, oldest
// first.
func (s *OfflineSaleStore) UnsyncedSales(ctx context.Context) ([]sale.OfflineRecord, error) {
	rows, err := s.pool.Query(ctx, unsyncedSalesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list unsynced sales")
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sale.OfflineRecord, error) {
		var (
			rec    sale.OfflineRecord
			method string
		)
		err := row.Scan(&rec.ID, &rec.Total, &rec.CustomerID, &method,
			&rec.Payment.AmountPaid, &rec.Payment.ChangeAmount,
			&rec.EmployeeID, &rec.BranchID, &rec.Timestamp,
		)
		rec.Payment.Method = sale.PaymentMethod(method)
		return rec, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan unsynced sales")
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	byID := make(map[string]*sale.OfflineRecord, len(records))
	for i := range records {
		ids[i] = records[i].ID
		byID[records[i].ID] = &records[i]
	}

	rows, err = s.pool.Query(ctx, saleItemsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list sale items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			saleID string
			it     sale.RecordItem
		)
		if err := rows.Scan(&saleID, &it.ProductID, &it.Name, &it.UnitName, &it.Quantity, &it.Price); err != nil {
			return nil, errors.Wrap(err, "scan sale item")
		}
		if rec := byID[saleID]; rec != nil {
			rec.Items = append(rec.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sale items")
	}
	return records, nil
}

// MarkSynced flags the sale as accepted by the backend. Unknown ids are
// ignored.
func (s *OfflineSaleStore) MarkSynced(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, markSyncedSQL, id, s.now()); err != nil {
		return errors.Wrapf(err, "mark sale %q synced", id)
	}
	return nil
}

// CountUnsynced returns the number of sales still waiting for the backend.
func (s *OfflineSaleStore) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, countUnsyncedSQL).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count unsynced sales")
	}
	return n, nil
}
