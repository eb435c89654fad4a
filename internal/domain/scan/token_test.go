package scan

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCode  string
		wantPrice string // empty means no declared total
	}{
		{name: "bare code", raw: "ABC", wantCode: "ABC"},
		{name: "bare code trimmed", raw: "  8901234 \n", wantCode: "8901234"},
		{name: "code and price", raw: "ABC-250", wantCode: "ABC", wantPrice: "250"},
		{name: "decimal price", raw: "ABC-99.50", wantCode: "ABC", wantPrice: "99.5"},
		{name: "price noise stripped", raw: "ABC-Rs 1,250", wantCode: "ABC", wantPrice: "1250"},
		{name: "first delimiter wins", raw: "AB-12-40", wantCode: "AB", wantPrice: "1240"},
		{name: "empty suffix falls back to bare", raw: "ABC-", wantCode: "ABC-"},
		{name: "non-numeric suffix falls back to bare", raw: "ABC-XL", wantCode: "ABC-XL"},
		{name: "two dots falls back to bare", raw: "ABC-1.2.3", wantCode: "ABC-1.2.3"},
		{name: "lone dot falls back to bare", raw: "ABC-.", wantCode: "ABC-."},
		{name: "zero price is declared", raw: "ABC-0", wantCode: "ABC", wantPrice: "0"},
		{name: "empty code keeps price", raw: "-180", wantCode: "", wantPrice: "180"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := ParseToken(tt.raw)

			assert.Equal(t, tt.wantCode, tok.Code)
			if tt.wantPrice == "" {
				assert.False(t, tok.HasDeclaredTotal())
				return
			}
			assert.True(t, tok.HasDeclaredTotal())
			assert.True(t, decimal.RequireFromString(tt.wantPrice).Equal(tok.DeclaredTotal.Decimal),
				"expected price %s, got %s", tt.wantPrice, tok.DeclaredTotal.Decimal)
		})
	}
}
