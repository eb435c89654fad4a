package sale

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptItem is one printed line.
type ReceiptItem struct {
	Name     string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Unit     string
}

// Receipt is the data handed to the printing collaborator.
type Receipt struct {
	TransactionID string
	Timestamp     time.Time
	Items         []ReceiptItem
	Subtotal      decimal.Decimal
	// Discount is zero when no cart discount applied.
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	AmountPaid    decimal.Decimal
	ChangeAmount  decimal.Decimal
	StoreName     string
	Address       string
	Cashier       string
	CustomerType  string
}
