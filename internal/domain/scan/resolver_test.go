package scan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-pos/internal/domain/catalog"
)

func testIndex() *catalog.Index {
	return catalog.NewIndex([]catalog.Product{
		{ID: "p1", Name: "Basmati Rice", UnitPrice: decimal.NewFromInt(100), Code: "ABC", UnitName: "kg"},
		{ID: "p2", Name: "Milk Packet (45)", UnitPrice: decimal.NewFromInt(45), Barcode: "8901234567890", UnitName: "pcs"},
		{ID: "p3", Name: "Soap bar 30 pack", UnitPrice: decimal.NewFromInt(30), SKU: "SOAP-30"},
		{ID: "p4", Name: "Tea [120]", UnitPrice: decimal.NewFromInt(120), Code: "778"},
		{ID: "p5", Name: "Sugar Special", UnitPrice: decimal.NewFromInt(50), Code: "SGR"},
	})
}

func TestResolver_Resolve(t *testing.T) {
	idx := testIndex()
	r := NewResolver()

	tests := []struct {
		name         string
		raw          string
		wantID       string
		wantStrategy string
	}{
		{name: "exact code", raw: "ABC", wantID: "p1", wantStrategy: "exact-key"},
		{name: "exact code case-insensitive", raw: "abc", wantID: "p1", wantStrategy: "exact-key"},
		{name: "exact barcode", raw: "8901234567890", wantID: "p2", wantStrategy: "exact-key"},
		{name: "code with declared total", raw: "ABC-250", wantID: "p1", wantStrategy: "exact-key"},
		{name: "unknown code with price in parens", raw: "ZZZ-45", wantID: "p2", wantStrategy: "declared-price-in-name"},
		{name: "unknown code with price in brackets", raw: "ZZZ-120", wantID: "p4", wantStrategy: "declared-price-in-name"},
		{name: "price as standalone word", raw: "ZZZ-30", wantID: "p3", wantStrategy: "declared-price-in-name"},
		{name: "declared price rounded", raw: "ZZZ-44.6", wantID: "p2", wantStrategy: "declared-price-in-name"},
		{name: "digit run", raw: "X778Y", wantID: "p4", wantStrategy: "digit-run-key"},
		{name: "code inside name", raw: "special", wantID: "p5", wantStrategy: "code-in-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := r.Resolve(ParseToken(tt.raw), idx)
			require.True(t, ok)
			assert.Equal(t, tt.wantID, m.Product.ID)
			assert.Equal(t, tt.wantStrategy, m.Strategy)
		})
	}
}

func TestResolver_NoMatch(t *testing.T) {
	idx := testIndex()
	r := NewResolver()

	for _, raw := range []string{"", "   ", "nothing", "UNKNOWN-999"} {
		_, ok := r.Resolve(ParseToken(raw), idx)
		assert.False(t, ok, "raw %q", raw)
	}

	_, ok := r.Resolve(ParseToken("ABC"), nil)
	assert.False(t, ok, "nil index")
}

func TestResolver_ExactKeyTakesPrecedence(t *testing.T) {
	idx := catalog.NewIndex([]catalog.Product{
		{ID: "p1", Name: "Cashews", UnitPrice: decimal.NewFromInt(100), Code: "ABC"},
		{ID: "p2", Name: "Cashews (250)", UnitPrice: decimal.NewFromInt(250)},
		{ID: "p3", Name: "abc sampler", UnitPrice: decimal.NewFromInt(10)},
	})

	m, ok := NewResolver().Resolve(ParseToken("ABC-250"), idx)
	require.True(t, ok)
	assert.Equal(t, "p1", m.Product.ID)
	assert.Equal(t, "exact-key", m.Strategy)
}

func TestResolver_CustomChain(t *testing.T) {
	idx := testIndex()
	r := NewResolver(Strategy{Name: "exact-key", Match: matchExactKey})

	_, ok := r.Resolve(ParseToken("special"), idx)
	assert.False(t, ok)
}

func TestFirstDigitRun(t *testing.T) {
	tests := map[string]string{
		"":       "",
		"abc":    "",
		"a12b34": "12",
		"0099":   "0099",
		"x٣٤y5":  "5",
	}
	for in, want := range tests {
		assert.Equal(t, want, firstDigitRun(in), "input %q", in)
	}
}
