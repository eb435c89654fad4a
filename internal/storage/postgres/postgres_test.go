//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pos",
				"POSTGRES_PASSWORD": "pos",
				"POSTGRES_DB":       "pos",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://pos:pos@%s:%s/pos?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := setupPool(t)

	t.Run("Catalog", func(t *testing.T) {
		ctx := context.Background()
		repo := NewCatalogRepository(pool)

		err := repo.ReplaceAll(ctx, []catalog.Product{
			{ID: "p1", Name: "Rice", UnitPrice: decimal.RequireFromString("12.50"), Barcode: "111", UnitName: "kg"},
			{ID: "p2", Name: "Milk", UnitPrice: decimal.RequireFromString("3"), Code: "M1"},
			{ID: "p1", Name: "Rice 5kg", UnitPrice: decimal.RequireFromString("60"), Barcode: "111"},
		})
		require.NoError(t, err)

		got, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "p2", got[0].ID)
		assert.Equal(t, "Rice 5kg", got[1].Name)
		assert.True(t, got[1].UnitPrice.Equal(decimal.NewFromInt(60)))

		require.NoError(t, repo.Upsert(ctx, []catalog.Product{
			{ID: "p2", Name: "Milk 1L", UnitPrice: decimal.RequireFromString("3.20"), Code: "M1"},
			{ID: "p3", Name: "Bread", UnitPrice: decimal.RequireFromString("2")},
		}))
		got, err = repo.List(ctx)
		require.NoError(t, err)
		ids := make([]string, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		assert.Equal(t, []string{"p1", "p2", "p3"}, ids)
		assert.Equal(t, "Milk 1L", got[1].Name)
	})

	t.Run("OfflineSales", func(t *testing.T) {
		ctx := context.Background()
		store := NewOfflineSaleStore(pool)

		rec := sale.OfflineRecord{
			ID: "s1",
			Items: []sale.RecordItem{
				{ProductID: "p1", Name: "Rice", UnitName: "kg", Quantity: decimal.RequireFromString("0.4"), Price: decimal.RequireFromString("12.50")},
				{ProductID: "p2", Name: "Milk", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(3)},
			},
			Total: decimal.RequireFromString("11.00"),
			Payment: sale.Payment{
				Method:       sale.Cash,
				AmountPaid:   decimal.NewFromInt(20),
				ChangeAmount: decimal.NewFromInt(9),
			},
			EmployeeID: "e1",
			BranchID:   "b1",
			Timestamp:  time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.SaveSale(ctx, rec))
		require.NoError(t, store.SaveSale(ctx, rec), "saving twice is a no-op")

		unsynced, err := store.UnsyncedSales(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 1)
		got := unsynced[0]
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, sale.Cash, got.Payment.Method)
		assert.True(t, got.Total.Equal(rec.Total))
		require.Len(t, got.Items, 2)
		assert.Equal(t, "p1", got.Items[0].ProductID)
		assert.True(t, got.Items[0].Quantity.Equal(decimal.RequireFromString("0.4")))
		assert.True(t, got.Timestamp.Equal(rec.Timestamp))

		n, err := store.CountUnsynced(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, store.MarkSynced(ctx, "s1"))
		unsynced, err = store.UnsyncedSales(ctx)
		require.NoError(t, err)
		assert.Empty(t, unsynced)
	})

	t.Run("Queue", func(t *testing.T) {
		ctx := context.Background()
		q := NewPendingRequestQueue(pool)
		base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

		require.NoError(t, q.Enqueue(ctx, sale.PendingRequest{ID: "r-old-low", Method: "POST", Path: "/x", Priority: 1, CreatedAt: base}))
		require.NoError(t, q.Enqueue(ctx, sale.PendingRequest{ID: "r-new-high", Method: "POST", Path: "/sale", Body: []byte(`{}`), SaleID: "s2", Priority: sale.PrioritySale, CreatedAt: base.Add(time.Minute)}))
		require.NoError(t, q.Enqueue(ctx, sale.PendingRequest{ID: "r-old-high", Method: "POST", Path: "/sale", SaleID: "s1", Priority: sale.PrioritySale, CreatedAt: base}))

		pending, err := q.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "r-old-high", pending[0].ID)
		assert.Equal(t, "r-new-high", pending[1].ID)
		assert.Equal(t, "r-old-low", pending[2].ID)
		assert.Equal(t, []byte(`{}`), pending[1].Body)

		require.NoError(t, q.RecordFailure(ctx, "r-old-low", "timeout"))
		require.NoError(t, q.RecordFailure(ctx, "r-old-low", "timeout again"))
		require.NoError(t, q.Remove(ctx, "r-old-high"))

		pending, err = q.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, 2, pending[1].Retries)
		assert.Equal(t, "timeout again", pending[1].LastError)

		stats, err := q.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, sale.QueueStats{Pending: 2, Failed: 1}, stats)
	})

	t.Run("PrinterPreference", func(t *testing.T) {
		ctx := context.Background()
		store := NewPrinterPreferenceStore(pool)

		_, err := store.Load(ctx, "t1")
		require.ErrorIs(t, err, printer.ErrNotSaved)

		plain := printer.Descriptor{Name: "Front", IsDefault: true}
		require.NoError(t, store.Save(ctx, "t1", plain))
		got, err := store.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, plain, got)

		profiled := printer.Descriptor{
			Name:    "Back",
			Profile: &printer.ReceiptProfile{Roll: "80mm", PrintableWidthMM: 72, Columns: printer.Columns{FontA: 48, FontB: 64}},
		}
		require.NoError(t, store.Save(ctx, "t1", profiled))
		got, err = store.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, profiled, got)
	})
}
