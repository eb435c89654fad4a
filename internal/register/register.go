// Package register is one terminal's transaction-entry session: it turns
// scanner and keyboard input into cart lines, applies operator edits, holds
// carts and drives settlement.
//
// Every cart mutation is serialized by the register. While a sale is being
// settled the cart is locked for that sale and edits fail with
// ErrSettlementInFlight.
package register

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/domain/hold"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/domain/scan"
	"github.com/xenking/kart-pos/internal/domain/settlement"
)

var (
	// ErrSettlementInFlight is returned for cart changes while a sale is being
	// persisted.
	ErrSettlementInFlight = errors.New("settlement in progress")
	// ErrInvalidCustomer is returned when selecting a customer without an id.
	ErrInvalidCustomer = errors.New("customer id is required")
)

// OutcomeKind classifies a scan.
type OutcomeKind string

const (
	// OutcomeAdded means a line was appended.
	OutcomeAdded OutcomeKind = "added"
	// OutcomeUnmatched means no strategy found a product; the scan is discarded.
	OutcomeUnmatched OutcomeKind = "unmatched"
	// OutcomeDropped means the ingestion guard rejected the event.
	OutcomeDropped OutcomeKind = "dropped"
	// OutcomeLocked means a sale was being settled.
	OutcomeLocked OutcomeKind = "locked"
)

// ScanOutcome reports what a scan did.
type ScanOutcome struct {
	Kind     OutcomeKind
	Token    scan.Token
	Strategy string
	Line     *cart.Line
}

// Config tunes input timing. A nil Clock uses the wall clock.
type Config struct {
	SettleDelay time.Duration
	QuietPeriod time.Duration
	Clock       clockwork.Clock
	Meter       metric.Meter
}

// Register is a terminal session.
type Register struct {
	lg       *zap.Logger
	resolver *scan.Resolver
	guard    *scan.Guard
	input    *scan.Debouncer
	engine   *settlement.Engine
	holds    *hold.Registry
	metrics  *registerMetrics

	mux     sync.Mutex
	index   *catalog.Index
	ledger  *cart.Ledger
	intents intentQueue
}

// New creates a Register with an empty catalog.
func New(cfg Config, engine *settlement.Engine, lg *zap.Logger) (*Register, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Meter == nil {
		cfg.Meter = metricnoop.NewMeterProvider().Meter("")
	}
	m, err := newRegisterMetrics(cfg.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}
	r := &Register{
		lg:       lg,
		resolver: scan.NewResolver(),
		guard:    scan.NewGuard(cfg.Clock, cfg.SettleDelay),
		engine:   engine,
		holds:    hold.NewRegistry(),
		metrics:  m,
		index:    catalog.NewIndex(nil),
		ledger:   cart.NewLedger(),
	}
	r.input = scan.NewDebouncer(cfg.Clock, cfg.QuietPeriod, func(text string) {
		r.Scan(context.Background(), text)
	})
	return r, nil
}

// SetCatalog rebuilds the product index. Key collisions are resolved in
// favour of the later product and logged.
func (r *Register) SetCatalog(ctx context.Context, products []catalog.Product) {
	idx := catalog.NewIndex(products)
	for _, c := range idx.Collisions() {
		r.lg.Warn("Catalog key collision",
			zap.String("key", c.Key),
			zap.String("previous", c.Previous),
			zap.String("winner", c.Winner),
		)
	}
	if n := len(idx.Collisions()); n > 0 {
		r.metrics.collisions.Add(ctx, int64(n))
	}

	r.mux.Lock()
	r.index = idx
	r.mux.Unlock()

	r.lg.Info("Catalog loaded", zap.Int("products", len(products)), zap.Int("keys", idx.Len()))
}

// CatalogSize returns the number of products in the index.
func (r *Register) CatalogSize() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.index.Products())
}

// Scan runs one raw scan through guard, parser, resolver and cart.
func (r *Register) Scan(ctx context.Context, raw string) ScanOutcome {
	raw = strings.TrimSpace(raw)
	out := ScanOutcome{Kind: OutcomeDropped, Token: scan.Token{Raw: raw}}
	if raw == "" {
		return out
	}

	if !r.guard.Submit(raw, func(raw string) { out = r.ingest(raw) }) {
		r.lg.Debug("Scan dropped by guard", zap.String("raw", raw))
	}
	r.metrics.scans.Add(ctx, 1, scanAttrs(out))
	return out
}

func (r *Register) ingest(raw string) ScanOutcome {
	r.mux.Lock()
	defer r.mux.Unlock()

	tok := scan.ParseToken(raw)
	if r.locked() {
		r.lg.Info("Scan rejected during settlement", zap.String("raw", raw))
		return ScanOutcome{Kind: OutcomeLocked, Token: tok}
	}
	defer r.intents.push(scanSurfaceReset()...)

	m, ok := r.resolver.Resolve(tok, r.index)
	if !ok {
		r.lg.Info("No product matched scan",
			zap.String("raw", raw),
			zap.String("code", tok.Code),
		)
		return ScanOutcome{Kind: OutcomeUnmatched, Token: tok}
	}

	line := r.ledger.Add(m.Product, decimal.NewFromInt(1), tok.DeclaredTotal)
	r.intents.push(Intent{Kind: IntentScrollToLine, LineID: line.ID})
	r.lg.Debug("Scan added line",
		zap.String("raw", raw),
		zap.String("product_id", m.Product.ID),
		zap.String("strategy", m.Strategy),
	)
	return ScanOutcome{Kind: OutcomeAdded, Token: tok, Strategy: m.Strategy, Line: &line}
}

// Accepting reports whether the ingestion guard would admit a new scan.
func (r *Register) Accepting() bool {
	return r.guard.State() == scan.Idle
}

// Type feeds free-typed input; it is scanned after the quiet period.
func (r *Register) Type(text string) {
	r.input.Type(text)
}

// Submit is the terminator keystroke: pending typed input is dropped and
// text is scanned immediately.
func (r *Register) Submit(ctx context.Context, text string) ScanOutcome {
	r.input.Cancel()
	return r.Scan(ctx, text)
}

// Cart returns the cart and its totals.
func (r *Register) Cart() cart.Summary {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.ledger.Summary()
}

// Intents drains the pending UI intents.
func (r *Register) Intents() []Intent {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.intents.drain()
}

// StepQuantity moves a line's quantity one unit-aware step.
func (r *Register) StepQuantity(lineID string, dir cart.Direction) (cart.Line, error) {
	return r.editLine(func(l *cart.Ledger) (cart.Line, error) { return l.StepQuantity(lineID, dir) })
}

// SetQuantity applies the quantity field text.
func (r *Register) SetQuantity(lineID, raw string) (cart.Line, error) {
	return r.editLine(func(l *cart.Ledger) (cart.Line, error) { return l.SetQuantity(lineID, raw) })
}

// SetUnitPrice applies the price field text.
func (r *Register) SetUnitPrice(lineID, raw string) (cart.Line, error) {
	return r.editLine(func(l *cart.Ledger) (cart.Line, error) { return l.SetUnitPrice(lineID, raw) })
}

// SetLineTotal applies the total field text.
func (r *Register) SetLineTotal(lineID, raw string) (cart.Line, error) {
	return r.editLine(func(l *cart.Ledger) (cart.Line, error) { return l.SetLineTotal(lineID, raw) })
}

// ApplyLineDiscount sets a line discount percentage.
func (r *Register) ApplyLineDiscount(lineID string, percent decimal.Decimal) (cart.Line, error) {
	return r.editLine(func(l *cart.Ledger) (cart.Line, error) { return l.ApplyLineDiscount(lineID, percent) })
}

// RemoveLine deletes a line.
func (r *Register) RemoveLine(lineID string) error {
	return r.edit(func(l *cart.Ledger) error { return l.Remove(lineID) })
}

// SetDiscount sets the cart discount.
func (r *Register) SetDiscount(d cart.Discount) error {
	return r.edit(func(l *cart.Ledger) error { return l.SetDiscount(d) })
}

// SetCustomer attributes the cart to a customer. The customer is cleared with
// the cart.
func (r *Register) SetCustomer(c cart.Customer) error {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		return ErrInvalidCustomer
	}
	return r.edit(func(l *cart.Ledger) error {
		l.SetCustomer(c)
		return nil
	})
}

// ClearCustomer returns the cart to the walk-in customer.
func (r *Register) ClearCustomer() error {
	return r.edit(func(l *cart.Ledger) error {
		l.SetCustomer(cart.Customer{})
		return nil
	})
}

// ClearCart empties the cart and abandons a pending payment.
func (r *Register) ClearCart() error {
	return r.edit(func(l *cart.Ledger) error {
		l.Clear()
		return r.engine.Cancel()
	})
}

// StartPayment opens payment and returns the tender prefill.
func (r *Register) StartPayment(method sale.PaymentMethod) (string, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.engine.StartPayment(method, r.ledger.Summary())
}

// CancelPayment closes the payment surface without side effects.
func (r *Register) CancelPayment() error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if err := r.engine.Cancel(); err != nil {
		return err
	}
	r.intents.push(Intent{Kind: IntentFocusScanInput})
	return nil
}

// ConfirmPayment validates the tender and settles the sale. The cart stays
// locked while the sale is persisted and is cleared once it is captured,
// online or offline.
func (r *Register) ConfirmPayment(ctx context.Context, tendered string) (settlement.Result, error) {
	r.mux.Lock()
	checkout, err := r.engine.Confirm(tendered, r.ledger.Summary())
	r.mux.Unlock()
	if err != nil {
		return settlement.Result{}, err
	}

	res, err := r.engine.Settle(ctx, checkout)
	if err != nil {
		return settlement.Result{}, err
	}

	r.mux.Lock()
	r.ledger.Clear()
	r.engine.Reset()
	r.intents.push(Intent{Kind: IntentFocusScanInput})
	r.mux.Unlock()
	return res, nil
}

// PaymentState returns the settlement state.
func (r *Register) PaymentState() settlement.State {
	return r.engine.State()
}

// Hold suspends the cart and returns its position in the holding list.
func (r *Register) Hold() (int, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.locked() {
		return 0, ErrSettlementInFlight
	}
	i, err := r.holds.Hold(r.ledger)
	if err != nil {
		return 0, err
	}
	if err := r.engine.Cancel(); err != nil {
		return 0, err
	}
	r.intents.push(Intent{Kind: IntentFocusScanInput})
	return i, nil
}

// Holds lists held carts.
func (r *Register) Holds() []hold.Held {
	return r.holds.List()
}

// RestoreHold resumes hold i. A non-empty cart is only replaced when discard
// is set.
func (r *Register) RestoreHold(i int, discard bool) error {
	return r.edit(func(l *cart.Ledger) error {
		if err := r.holds.Restore(i, l, discard); err != nil {
			return err
		}
		return r.engine.Cancel()
	})
}

// DeleteHold drops hold i.
func (r *Register) DeleteHold(i int) error {
	return r.holds.Delete(i)
}

// ClearHolds drops every hold.
func (r *Register) ClearHolds() {
	r.holds.Clear()
}

func (r *Register) locked() bool {
	return r.engine.State() == settlement.Confirming
}

func (r *Register) edit(fn func(l *cart.Ledger) error) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.locked() {
		return ErrSettlementInFlight
	}
	return fn(r.ledger)
}

func (r *Register) editLine(fn func(l *cart.Ledger) (cart.Line, error)) (cart.Line, error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.locked() {
		return cart.Line{}, ErrSettlementInFlight
	}
	return fn(r.ledger)
}
