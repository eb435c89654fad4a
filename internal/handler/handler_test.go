package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/domain/settlement"
	"github.com/xenking/kart-pos/internal/register"
	"github.com/xenking/kart-pos/internal/replay"
)

type mockSales struct {
	err error
}

func (m *mockSales) CreateSale(context.Context, string, sale.Request) (sale.Created, error) {
	if m.err != nil {
		return sale.Created{}, m.err
	}
	return sale.Created{ID: "s1", SaleNumber: "SALE-1"}, nil
}

type memStore struct {
	records []sale.OfflineRecord
}

func (m *memStore) SaveSale(_ context.Context, rec sale.OfflineRecord) error {
	m.records = append(m.records, rec)
	return nil
}
func (m *memStore) UnsyncedSales(context.Context) ([]sale.OfflineRecord, error) {
	return m.records, nil
}
func (m *memStore) MarkSynced(context.Context, string) error { return nil }

type memQueue struct{}

func (memQueue) Enqueue(context.Context, sale.PendingRequest) error     { return nil }
func (memQueue) Pending(context.Context) ([]sale.PendingRequest, error) { return nil, nil }
func (memQueue) Remove(context.Context, string) error                   { return nil }
func (memQueue) RecordFailure(context.Context, string, string) error    { return nil }

type mockPrinters struct {
	available []printer.Descriptor
	current   *printer.Descriptor
}

func (m *mockPrinters) Available(context.Context) ([]printer.Descriptor, error) {
	return m.available, nil
}

func (m *mockPrinters) Current() (printer.Descriptor, bool) {
	if m.current == nil {
		return printer.Descriptor{}, false
	}
	return *m.current, true
}

func (m *mockPrinters) Select(_ context.Context, name string) (printer.Descriptor, error) {
	for _, d := range m.available {
		if d.Name == name {
			m.current = &d
			return d, nil
		}
	}
	return printer.Descriptor{}, errors.Wrapf(printer.ErrUnknownPrinter, "%q", name)
}

type mockSync struct {
	status    replay.Status
	triggered int
}

func (m *mockSync) Status(context.Context) (replay.Status, error) { return m.status, nil }
func (m *mockSync) Trigger()                                      { m.triggered++ }

type fixture struct {
	srv      *httptest.Server
	clk      *clockwork.FakeClock
	reg      *register.Register
	sales    *mockSales
	store    *memStore
	printers *mockPrinters
	sync     *mockSync
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lg := zap.NewNop()
	f := &fixture{
		clk:   clockwork.NewFakeClockAt(time.Unix(0, 0)),
		sales: &mockSales{},
		store: &memStore{},
		printers: &mockPrinters{available: []printer.Descriptor{
			{Name: "Front", IsDefault: true},
			{Name: "Back"},
		}},
		sync: &mockSync{status: replay.Status{Online: true, PendingCount: 2}},
	}
	engine, err := settlement.NewEngine(settlement.Deps{
		Sales: f.sales,
		Store: f.store,
		Queue: memQueue{},
	}, settlement.Terminal{BranchID: "b1"}, lg)
	require.NoError(t, err)

	reg, err := register.New(register.Config{SettleDelay: 50 * time.Millisecond, Clock: f.clk}, engine, lg)
	require.NoError(t, err)
	f.reg = reg
	reg.SetCatalog(context.Background(), []catalog.Product{
		{ID: "p1", Name: "Rice", Code: "ABC", UnitPrice: decimal.NewFromInt(100), UnitName: "kg"},
		{ID: "p2", Name: "Soap bar", Barcode: "8901", UnitPrice: decimal.NewFromInt(40)},
	})

	mux := http.NewServeMux()
	New(reg, f.printers, f.sync).Register(mux)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// scan posts raw and lets the ingestion guard settle.
func (f *fixture) scan(t *testing.T, raw string) map[string]any {
	t.Helper()
	code, out := f.do(t, http.MethodPost, "/api/scan", `{"raw":"`+raw+`"}`)
	require.Equal(t, http.StatusOK, code)
	f.clk.Advance(50 * time.Millisecond)
	require.Eventually(t, f.reg.Accepting, time.Second, time.Millisecond)
	return out
}

func firstLineID(t *testing.T, cart map[string]any) string {
	t.Helper()
	lines, ok := cart["lines"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, lines)
	return lines[0].(map[string]any)["id"].(string)
}

func TestHandler_Scan(t *testing.T) {
	f := newFixture(t)

	out := f.scan(t, "ABC-250")
	assert.Equal(t, "added", out["outcome"])
	assert.Equal(t, "exact-key", out["strategy"])
	line := out["line"].(map[string]any)
	assert.EqualValues(t, 2.5, line["quantity"])
	assert.EqualValues(t, 250, line["total"])

	out = f.scan(t, "UNKNOWN-999")
	assert.Equal(t, "unmatched", out["outcome"])
	assert.Nil(t, out["line"])

	code, cart := f.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, cart["lines"], 1)
	assert.EqualValues(t, 250, cart["payable"])
}

func TestHandler_CartEdits(t *testing.T) {
	f := newFixture(t)
	f.scan(t, "8901")
	_, cart := f.do(t, http.MethodGet, "/api/cart", "")
	id := firstLineID(t, cart)

	code, line := f.do(t, http.MethodPost, "/api/cart/lines/"+id+"/increment", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, line["quantity"])

	code, line = f.do(t, http.MethodPut, "/api/cart/lines/"+id+"/total", `{"value":"120"}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, line["quantity"])

	code, line = f.do(t, http.MethodPut, "/api/cart/lines/"+id+"/price", `{"value":50}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 150, line["total"])

	code, line = f.do(t, http.MethodPut, "/api/cart/lines/"+id+"/discount", `{"percent":10}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 108, line["total"], "line discount applies to the catalog price")

	code, out := f.do(t, http.MethodPut, "/api/cart/lines/"+id+"/discount", `{"percent":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_discount", out["code"])

	code, out = f.do(t, http.MethodPut, "/api/cart/lines/nope/quantity", `{"value":"2"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", out["code"])

	code, cart = f.do(t, http.MethodPut, "/api/cart/discount", `{"type":"amount","value":"35"}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 73, cart["payable"])

	code, cart = f.do(t, http.MethodDelete, "/api/cart/lines/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, cart["lines"])
}

func TestHandler_Customer(t *testing.T) {
	f := newFixture(t)
	f.sales.err = errors.New("connection refused")
	f.scan(t, "8901")

	code, out := f.do(t, http.MethodPut, "/api/cart/customer", `{"name":"Ada"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "invalid_customer", out["code"])

	code, cart := f.do(t, http.MethodPut, "/api/cart/customer", `{"id":"c-1","name":"Ada"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"id": "c-1", "name": "Ada"}, cart["customer"])

	code, cart = f.do(t, http.MethodDelete, "/api/cart/customer", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, cart["customer"])

	code, _ = f.do(t, http.MethodPut, "/api/cart/customer", `{"id":42,"name":"Grace"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/api/payment/start", `{"method":"cash"}`)
	require.Equal(t, http.StatusOK, code)
	code, out = f.do(t, http.MethodPost, "/api/payment/confirm", `{"tendered":"40"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "offline", out["path"])
	receipt := out["receipt"].(map[string]any)
	assert.Equal(t, "Grace", receipt["customerType"])

	require.Len(t, f.store.records, 1)
	assert.Equal(t, "42", f.store.records[0].CustomerID)

	_, cart = f.do(t, http.MethodGet, "/api/cart", "")
	assert.Nil(t, cart["customer"], "customer is cleared with the cart")
}

func TestHandler_BadBody(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, http.MethodPost, "/api/scan", `{"raw":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", out["code"])

	code, _ = f.do(t, http.MethodPost, "/api/holds/x/restore", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_Payment(t *testing.T) {
	tests := []struct {
		name     string
		salesErr error
		wantPath string
	}{
		{name: "Online", wantPath: "online"},
		{name: "OfflineFallback", salesErr: errors.New("connection refused"), wantPath: "offline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.sales.err = tt.salesErr

			code, out := f.do(t, http.MethodPost, "/api/payment/start", `{"method":"cash"}`)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "empty_cart", out["code"])

			f.scan(t, "8901")

			code, out = f.do(t, http.MethodPost, "/api/payment/start", `{"method":"cheque"}`)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "unknown_payment_method", out["code"])

			code, out = f.do(t, http.MethodPost, "/api/payment/start", `{"method":"cash"}`)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "payment-pending", out["state"])
			assert.EqualValues(t, 40, out["payable"])

			code, out = f.do(t, http.MethodPost, "/api/payment/confirm", `{"tendered":"abc"}`)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "invalid_tender", out["code"])

			code, out = f.do(t, http.MethodPost, "/api/payment/confirm", `{"tendered":"10"}`)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Equal(t, "insufficient_tender", out["code"])

			code, out = f.do(t, http.MethodPost, "/api/payment/confirm", `{"tendered":50}`)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.wantPath, out["path"])
			assert.EqualValues(t, 10, out["change"])
			assert.NotEmpty(t, out["transactionId"])
			assert.NotNil(t, out["receipt"])

			_, cart := f.do(t, http.MethodGet, "/api/cart", "")
			assert.Empty(t, cart["lines"])
			_, out = f.do(t, http.MethodGet, "/api/payment", "")
			assert.Equal(t, "idle", out["state"])
		})
	}
}

func TestHandler_Holds(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, http.MethodPost, "/api/holds", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "empty_cart", out["code"])

	f.scan(t, "8901")
	code, out = f.do(t, http.MethodPost, "/api/holds", "")
	require.Equal(t, http.StatusCreated, code)
	assert.EqualValues(t, 0, out["index"])

	f.scan(t, "ABC")
	code, out = f.do(t, http.MethodPost, "/api/holds/0/restore", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "discard_required", out["code"])

	code, cart := f.do(t, http.MethodPost, "/api/holds/0/restore", `{"discard":true}`)
	require.Equal(t, http.StatusOK, code)
	lines := cart["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, "p2", lines[0].(map[string]any)["productId"])

	code, out = f.do(t, http.MethodDelete, "/api/holds/0", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", out["code"])
}

func TestHandler_Intents(t *testing.T) {
	f := newFixture(t)
	f.scan(t, "8901")

	resp, err := http.Get(f.srv.URL + "/api/intents")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var intents []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&intents))

	kinds := make([]string, len(intents))
	for i, in := range intents {
		kinds[i] = in["kind"].(string)
	}
	assert.Equal(t, []string{"scroll-to-line", "clear-scan-input", "focus-scan-input"}, kinds)
}

func TestHandler_Printers(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, http.MethodGet, "/api/printers", "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, out["current"])
	assert.Len(t, out["printers"], 2)

	code, out = f.do(t, http.MethodPut, "/api/printers/current", `{"name":"Back"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Back", out["name"])

	code, out = f.do(t, http.MethodPut, "/api/printers/current", `{"name":"Ghost"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", out["code"])

	code, _ = f.do(t, http.MethodPut, "/api/printers/current", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_Sync(t *testing.T) {
	f := newFixture(t)

	code, out := f.do(t, http.MethodGet, "/api/sync", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["online"])
	assert.EqualValues(t, 2, out["pendingCount"])
	assert.Nil(t, out["lastSync"])

	code, _ = f.do(t, http.MethodPost, "/api/sync", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 1, f.sync.triggered)
}
