// Package sale holds the records a settled cart turns into: the sale request
// sent to the backend, the offline record kept when the backend is not
// reachable, the queued request awaiting replay and the receipt projection.
package sale

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the tender type.
type PaymentMethod string

const (
	Cash PaymentMethod = "CASH"
	Card PaymentMethod = "CARD"
)

// ErrUnknownPaymentMethod is returned by ParsePaymentMethod.
var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod accepts "cash" and "card" in any case.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case Cash, Card:
		return m, nil
	default:
		return "", errors.Wrapf(ErrUnknownPaymentMethod, "%q", s)
	}
}

// Item is one sale request line.
type Item struct {
	ProductID string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// Request is the create-sale call.
type Request struct {
	Items         []Item
	PaymentMethod PaymentMethod
	BranchID      string
	CustomerID    string
}

// Created is the backend acknowledgement of a sale.
type Created struct {
	ID         string
	SaleNumber string
}

// TransactionID is the identifier printed on the receipt.
func (c Created) TransactionID() string {
	if c.SaleNumber != "" {
		return c.SaleNumber
	}
	return c.ID
}

// Payment describes how an offline sale was paid.
type Payment struct {
	Method       PaymentMethod
	AmountPaid   decimal.Decimal
	ChangeAmount decimal.Decimal
}

// RecordItem is a line of an offline record.
type RecordItem struct {
	ProductID string
	Name      string
	UnitName  string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// OfflineRecord is a sale captured locally while it could not be sent.
type OfflineRecord struct {
	ID         string
	Items      []RecordItem
	Total      decimal.Decimal
	CustomerID string
	Payment    Payment
	EmployeeID string
	BranchID   string
	Timestamp  time.Time
	Synced     bool
}

// Request rebuilds the create-sale call from the record.
func (r OfflineRecord) Request() Request {
	items := make([]Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = Item{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return Request{
		Items:         items,
		PaymentMethod: r.Payment.Method,
		BranchID:      r.BranchID,
		CustomerID:    r.CustomerID,
	}
}

// PrioritySale is the replay priority of queued sales.
const PrioritySale = 10

// PendingRequest is an outbound call waiting for connectivity.
type PendingRequest struct {
	ID        string
	Method    string
	Path      string
	Body      []byte
	SaleID    string
	Priority  int
	Retries   int
	LastError string
	CreatedAt time.Time
}

// OfflineStore persists sales that did not reach the backend.
type OfflineStore interface {
	SaveSale(ctx context.Context, rec OfflineRecord) error
	UnsyncedSales(ctx context.Context) ([]OfflineRecord, error)
	MarkSynced(ctx context.Context, id string) error
}

// RequestQueue holds requests for later replay.
type RequestQueue interface {
	Enqueue(ctx context.Context, req PendingRequest) error
	// Pending lists requests by priority, highest first, then by age.
	Pending(ctx context.Context) ([]PendingRequest, error)
	Remove(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id, reason string) error
}

// QueueStats summarizes a RequestQueue.
type QueueStats struct {
	Pending int
	// Failed counts requests that failed at least once.
	Failed int
}
