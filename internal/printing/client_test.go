package printing

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
)

type printServer struct {
	mu      sync.Mutex
	healthy bool
	fail    bool
	prints  [][]byte
	srv     *httptest.Server
}

func newPrintServer(t *testing.T, healthy bool) *printServer {
	t.Helper()
	ps := &printServer{healthy: healthy}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		switch r.URL.Path {
		case "/health":
			if ps.healthy {
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			} else {
				_, _ = w.Write([]byte(`{"status":"starting"}`))
			}
		case "/printers":
			_, _ = w.Write([]byte(`{"success":true,"data":[{"name":"Front","isDefault":true}]}`))
		case "/print-receipt":
			if ps.fail {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"message":"paper out"}`))
				return
			}
			body, _ := io.ReadAll(r.Body)
			ps.prints = append(ps.prints, body)
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *printServer) printCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.prints)
}

func newClient(t *testing.T, primary, fallback *printServer) *Client {
	t.Helper()
	cfg := Config{URL: primary.srv.URL}
	if fallback != nil {
		cfg.FallbackURL = fallback.srv.URL
	}
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

var receipt = sale.Receipt{TransactionID: "TXN1", PaymentMethod: sale.Cash}

func TestClient_PrintPrefersLocalServer(t *testing.T) {
	local := newPrintServer(t, true)
	remote := newPrintServer(t, true)
	c := newClient(t, local, remote)

	require.NoError(t, c.Print(context.Background(), printer.Descriptor{Name: "Front"}, receipt, printer.DefaultJob()))
	assert.Equal(t, 1, local.printCount())
	assert.Zero(t, remote.printCount())
	assert.Contains(t, string(local.prints[0]), `"transactionId":"TXN1"`)
}

func TestClient_PrintFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		healthy   bool
		localFail bool
	}{
		{name: "local server not ready", healthy: false},
		{name: "local server rejects job", healthy: true, localFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := newPrintServer(t, tt.healthy)
			local.fail = tt.localFail
			remote := newPrintServer(t, true)
			c := newClient(t, local, remote)

			require.NoError(t, c.Print(context.Background(), printer.Descriptor{Name: "Front"}, receipt, printer.DefaultJob()))
			assert.Zero(t, local.printCount())
			assert.Equal(t, 1, remote.printCount())
		})
	}
}

func TestClient_PrintBothFail(t *testing.T) {
	local := newPrintServer(t, true)
	local.fail = true
	remote := newPrintServer(t, true)
	remote.fail = true
	c := newClient(t, local, remote)

	err := c.Print(context.Background(), printer.Descriptor{Name: "Front"}, receipt, printer.DefaultJob())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper out")
}

func TestClient_PrintNoFallback(t *testing.T) {
	local := newPrintServer(t, false)
	c := newClient(t, local, nil)

	require.Error(t, c.Print(context.Background(), printer.Descriptor{Name: "Front"}, receipt, printer.DefaultJob()))
}

func TestClient_Printers(t *testing.T) {
	local := newPrintServer(t, false)
	remote := newPrintServer(t, true)
	c := newClient(t, local, remote)

	got, err := c.Printers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Front", got[0].Name)
	assert.True(t, got[0].IsDefault)
}

type memPrinterStore struct {
	saved map[string]printer.Descriptor
}

func (m *memPrinterStore) Load(_ context.Context, id string) (printer.Descriptor, error) {
	d, ok := m.saved[id]
	if !ok {
		return printer.Descriptor{}, printer.ErrNotSaved
	}
	return d, nil
}

func (m *memPrinterStore) Save(_ context.Context, id string, d printer.Descriptor) error {
	m.saved[id] = d
	return nil
}

func TestReceipts_ResolvesPrinterOnFirstUse(t *testing.T) {
	local := newPrintServer(t, true)
	c := newClient(t, local, nil)
	store := &memPrinterStore{saved: map[string]printer.Descriptor{}}
	sel := printer.NewSelector("t1", store, c)

	r := NewReceipts(c, sel, printer.DefaultJob())
	require.NoError(t, r.PrintReceipt(context.Background(), receipt))

	assert.Equal(t, 1, local.printCount())
	assert.Contains(t, string(local.prints[0]), `"printer":{"name":"Front"}`)
	assert.Equal(t, "Front", store.saved["t1"].Name)
}
