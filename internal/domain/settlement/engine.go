// Package settlement takes a cart from payment start to a persisted sale.
//
// The engine moves through Idle → PaymentPending → Confirming → Settled.
// Confirm validates the tender without side effects; Settle performs the
// I/O: an online create-sale call, or, when offline or when that call fails,
// an offline record plus a queued request for replay. A receipt is then
// handed to the printer; print failures never undo a sale.
package settlement

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/wire"
)

// State of the engine.
type State int

const (
	Idle State = iota
	PaymentPending
	Confirming
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PaymentPending:
		return "payment-pending"
	case Confirming:
		return "confirming"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// Path is where a sale was persisted.
type Path string

const (
	PathOnline  Path = "online"
	PathOffline Path = "offline"
)

// SalePath is the backend route for sale creation.
const SalePath = "/sale"

// SaleCreator creates sales on the backend. The idempotency key lets the
// backend recognise a replay of the same sale.
type SaleCreator interface {
	CreateSale(ctx context.Context, idempotencyKey string, req sale.Request) (sale.Created, error)
}

// ReceiptPrinter hands a receipt to the printing collaborator.
type ReceiptPrinter interface {
	PrintReceipt(ctx context.Context, r sale.Receipt) error
}

// Connectivity reports whether the backend is believed reachable.
type Connectivity interface {
	Online() bool
}

// Terminal is the static identity printed on receipts and attached to sales.
type Terminal struct {
	BranchID     string
	EmployeeID   string
	StoreName    string
	Address      string
	Cashier      string
	CustomerType string
}

// Deps are the engine's collaborators. Printer and Connectivity may be nil:
// without a printer no receipt is printed, without connectivity the online
// path is always attempted first.
type Deps struct {
	Sales        SaleCreator
	Store        sale.OfflineStore
	Queue        sale.RequestQueue
	Printer      ReceiptPrinter
	Connectivity Connectivity
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("github.com/xenking/kart-pos/settlement") }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meter = mp.Meter("github.com/xenking/kart-pos/settlement") }
}

// Checkout is a validated payment waiting to be settled.
type Checkout struct {
	Method  sale.PaymentMethod
	Tender  decimal.Decimal
	Change  decimal.Decimal
	Summary cart.Summary
}

// Result is a settled sale.
type Result struct {
	SaleID        string
	TransactionID string
	Path          Path
	Change        decimal.Decimal
	Receipt       sale.Receipt
	Printed       bool
}

// Engine is the settlement state machine for one register.
type Engine struct {
	deps     Deps
	terminal Terminal
	lg       *zap.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	metrics  *engineMetrics
	now      func() time.Time
	newID    func() string

	mux    sync.Mutex
	state  State
	method sale.PaymentMethod
}

// NewEngine creates an Engine in the Idle state.
func NewEngine(deps Deps, terminal Terminal, lg *zap.Logger, opts ...Option) (*Engine, error) {
	if terminal.CustomerType == "" {
		terminal.CustomerType = "Walk-in"
	}
	e := &Engine{
		deps:     deps,
		terminal: terminal,
		lg:       lg,
		tracer:   tracenoop.NewTracerProvider().Tracer(""),
		meter:    metricnoop.NewMeterProvider().Meter(""),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	m, err := newEngineMetrics(e.meter)
	if err != nil {
		return nil, errors.Wrap(err, "settlement metrics")
	}
	e.metrics = m
	return e, nil
}

// State returns the current state.
func (e *Engine) State() State {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.state
}

// Method returns the payment method chosen by StartPayment.
func (e *Engine) Method() sale.PaymentMethod {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.method
}

// StartPayment enters PaymentPending and returns the tender prefill, the
// payable total with two decimals. Calling it again switches the method.
func (e *Engine) StartPayment(method sale.PaymentMethod, summary cart.Summary) (string, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if e.state == Confirming {
		return "", &StateError{Op: "start payment", State: e.state}
	}
	if len(summary.Lines) == 0 {
		return "", ErrEmptyCart
	}
	e.state = PaymentPending
	e.method = method
	return summary.Payable.StringFixed(cart.MoneyPlaces), nil
}

// Cancel closes the payment surface. Nothing has been persisted yet, so it
// has no side effects. A sale in flight cannot be cancelled.
func (e *Engine) Cancel() error {
	e.mux.Lock()
	defer e.mux.Unlock()

	switch e.state {
	case Confirming:
		return &StateError{Op: "cancel", State: e.state}
	default:
		e.state = Idle
		return nil
	}
}

// Confirm validates the tendered amount against the payable total and moves
// to Confirming.
func (e *Engine) Confirm(tendered string, summary cart.Summary) (Checkout, error) {
	e.mux.Lock()
	defer e.mux.Unlock()

	if e.state != PaymentPending {
		return Checkout{}, &StateError{Op: "confirm", State: e.state}
	}
	if len(summary.Lines) == 0 {
		return Checkout{}, ErrEmptyCart
	}

	raw := strings.TrimSpace(tendered)
	tender, err := decimal.NewFromString(raw)
	if err != nil || tender.IsNegative() {
		return Checkout{}, &InsufficientTenderError{Raw: tendered, Payable: summary.Payable, NotANumber: err != nil}
	}
	if tender.LessThan(summary.Payable) {
		return Checkout{}, &InsufficientTenderError{Raw: tendered, Tendered: tender, Payable: summary.Payable}
	}

	e.state = Confirming
	return Checkout{
		Method:  e.method,
		Tender:  tender,
		Change:  Change(tender, summary.Payable),
		Summary: summary,
	}, nil
}

// Change is max(0, tendered - payable).
func Change(tendered, payable decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, tendered.Sub(payable))
}

// Settle persists the checkout. On success the engine is Settled and the
// caller clears the cart. If the sale could not be captured at all the engine
// returns to Idle and the error is returned.
func (e *Engine) Settle(ctx context.Context, c Checkout) (Result, error) {
	if st := e.State(); st != Confirming {
		return Result{}, &StateError{Op: "settle", State: st}
	}

	ctx, span := e.tracer.Start(ctx, "settlement.Settle",
		trace.WithAttributes(
			attribute.String("payment.method", string(c.Method)),
			attribute.String("payable", c.Summary.Payable.StringFixed(2)),
		),
	)
	defer span.End()

	saleID := e.newID()
	req := e.request(c)
	lg := e.lg.With(zap.String("sale_id", saleID))

	res := Result{SaleID: saleID, Change: c.Change}
	if e.deps.Connectivity == nil || e.deps.Connectivity.Online() {
		created, err := e.deps.Sales.CreateSale(ctx, saleID, req)
		if err == nil {
			res.Path = PathOnline
			res.TransactionID = created.TransactionID()
		} else {
			lg.Warn("Online sale failed, storing offline", zap.Error(err))
			span.RecordError(err)
			e.metrics.fallbacks.Add(ctx, 1)
		}
	}

	if res.Path == "" {
		if err := e.storeOffline(ctx, saleID, req, c); err != nil {
			span.SetStatus(codes.Error, "offline store failed")
			e.setState(Idle)
			return Result{}, errors.Wrap(err, "store sale offline")
		}
		res.Path = PathOffline
		res.TransactionID = LocalTransactionID(saleID)
	}
	span.SetAttributes(
		attribute.String("sale.path", string(res.Path)),
		attribute.String("sale.transaction_id", res.TransactionID),
	)
	e.metrics.sales.Add(ctx, 1, pathAttr(res.Path))
	e.setState(Settled)

	res.Receipt = e.receipt(res.TransactionID, c)
	if e.deps.Printer != nil {
		if err := e.deps.Printer.PrintReceipt(ctx, res.Receipt); err != nil {
			lg.Warn("Receipt print failed", zap.Error(err))
			e.metrics.printFailures.Add(ctx, 1)
		} else {
			res.Printed = true
		}
	}

	lg.Info("Sale settled",
		zap.String("path", string(res.Path)),
		zap.String("transaction_id", res.TransactionID),
		zap.String("total", c.Summary.Payable.StringFixed(2)),
	)
	return res, nil
}

// Reset returns a Settled engine to Idle.
func (e *Engine) Reset() {
	e.mux.Lock()
	defer e.mux.Unlock()
	if e.state == Settled {
		e.state = Idle
	}
}

// storeOffline writes the record and queues the request. The writes outlive
// a cancelled caller: once confirmed the sale must be captured.
func (e *Engine) storeOffline(ctx context.Context, saleID string, req sale.Request, c Checkout) error {
	ctx = context.WithoutCancel(ctx)
	now := e.now()

	items := make([]sale.RecordItem, len(c.Summary.Lines))
	for i, l := range c.Summary.Lines {
		items[i] = sale.RecordItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitName:  l.UnitName,
			Quantity:  l.Quantity,
			Price:     l.EffectiveUnitPrice,
		}
	}
	rec := sale.OfflineRecord{
		ID:         saleID,
		Items:      items,
		Total:      c.Summary.Payable,
		CustomerID: req.CustomerID,
		Payment: sale.Payment{
			Method:       c.Method,
			AmountPaid:   c.Tender,
			ChangeAmount: c.Change,
		},
		EmployeeID: e.terminal.EmployeeID,
		BranchID:   e.terminal.BranchID,
		Timestamp:  now,
	}
	if err := e.deps.Store.SaveSale(ctx, rec); err != nil {
		return err
	}

	pending := sale.PendingRequest{
		ID:        e.newID(),
		Method:    http.MethodPost,
		Path:      SalePath,
		Body:      wire.EncodeSaleRequest(req),
		SaleID:    saleID,
		Priority:  sale.PrioritySale,
		CreatedAt: now,
	}
	if err := e.deps.Queue.Enqueue(ctx, pending); err != nil {
		// The record is stored unsynced; replay picks it up without a queue entry.
		e.lg.Error("Enqueue sale for replay failed", zap.String("sale_id", saleID), zap.Error(err))
	}
	return nil
}

func (e *Engine) request(c Checkout) sale.Request {
	items := make([]sale.Item, len(c.Summary.Lines))
	for i, l := range c.Summary.Lines {
		items[i] = sale.Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.EffectiveUnitPrice,
		}
	}
	return sale.Request{
		Items:         items,
		PaymentMethod: c.Method,
		BranchID:      e.terminal.BranchID,
		CustomerID:    c.Summary.Customer.ID,
	}
}

func (e *Engine) receipt(txnID string, c Checkout) sale.Receipt {
	items := make([]sale.ReceiptItem, len(c.Summary.Lines))
	for i, l := range c.Summary.Lines {
		items[i] = sale.ReceiptItem{
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.EffectiveUnitPrice,
			Unit:     l.UnitName,
		}
	}
	customer := e.terminal.CustomerType
	if sel := c.Summary.Customer; !sel.IsZero() {
		customer = sel.Name
		if customer == "" {
			customer = sel.ID
		}
	}
	return sale.Receipt{
		TransactionID: txnID,
		Timestamp:     e.now(),
		Items:         items,
		Subtotal:      c.Summary.Subtotal,
		Discount:      decimal.Min(c.Summary.DiscountAmount, c.Summary.Subtotal),
		Total:         c.Summary.Payable,
		PaymentMethod: c.Method,
		AmountPaid:    c.Tender,
		ChangeAmount:  c.Change,
		StoreName:     e.terminal.StoreName,
		Address:       e.terminal.Address,
		Cashier:       e.terminal.Cashier,
		CustomerType:  customer,
	}
}

func (e *Engine) setState(s State) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.state = s
}

// LocalTransactionID derives the receipt number of an offline sale from its
// local id.
func LocalTransactionID(saleID string) string {
	id := strings.ReplaceAll(saleID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "TXN" + strings.ToUpper(id)
}
