// Package replay drains the offline queue once the backend is reachable and
// refreshes the local catalog.
//
// A sync runs three phases in order: queued requests by priority, offline
// sales that never got a queued request, and a catalog pull. Each phase
// logs and counts its failures and carries on; a failed request stays queued
// until it exceeds the retry limit.
package replay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/domain/sale"
)

// Defaults for Config.
const (
	DefaultInterval   = 30 * time.Second
	DefaultMaxRetries = 5
)

var (
	// ErrOffline is returned by Sync when the backend is unreachable.
	ErrOffline = errors.New("backend offline")
	// ErrSyncing is returned by Sync when another sync is running.
	ErrSyncing = errors.New("sync in progress")
)

// Backend is the remote side of a sync.
type Backend interface {
	Replay(ctx context.Context, req sale.PendingRequest) error
	CreateSale(ctx context.Context, idempotencyKey string, req sale.Request) (sale.Created, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

// Queue is the replay queue.
type Queue interface {
	sale.RequestQueue
	Stats(ctx context.Context) (sale.QueueStats, error)
}

// Sales is the offline sale store.
type Sales interface {
	sale.OfflineStore
	CountUnsynced(ctx context.Context) (int, error)
}

// CatalogSink receives every refreshed catalog.
type CatalogSink interface {
	SetCatalog(ctx context.Context, products []catalog.Product)
}

// Connectivity reports and announces backend reachability.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool))
}

// Deps are the collaborators of a Replayer.
type Deps struct {
	Backend      Backend
	Queue        Queue
	Sales        Sales
	Catalog      catalog.Repository
	Sink         CatalogSink
	Connectivity Connectivity
}

// Config tunes a Replayer.
type Config struct {
	Interval   time.Duration
	MaxRetries int
	Meter      metric.Meter
}

// Status is a snapshot of the sync state.
type Status struct {
	Online       bool
	Syncing      bool
	LastSync     time.Time
	PendingCount int
	FailedCount  int
}

// Report counts what one sync did.
type Report struct {
	Replayed int
	Posted   int
	Failed   int
	Dropped  int
	Products int
}

// Replayer runs syncs on an interval, on reconnect and on demand.
type Replayer struct {
	deps       Deps
	interval   time.Duration
	maxRetries int
	lg         *zap.Logger
	metrics    *replayMetrics
	now        func() time.Time

	trigger chan struct{}
	syncing atomic.Bool

	mu       sync.Mutex
	lastSync time.Time
}

// New creates a Replayer.
func New(cfg Config, deps Deps, lg *zap.Logger) (*Replayer, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Meter == nil {
		cfg.Meter = metricnoop.NewMeterProvider().Meter("")
	}
	m, err := newReplayMetrics(cfg.Meter)
	if err != nil {
		return nil, errors.Wrap(err, "replay metrics")
	}
	return &Replayer{
		deps:       deps,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		lg:         lg,
		metrics:    m,
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
	}, nil
}

// Warm loads the locally cached catalog into the sink.
func (r *Replayer) Warm(ctx context.Context) error {
	products, err := r.deps.Catalog.List(ctx)
	if err != nil {
		return errors.Wrap(err, "load cached catalog")
	}
	r.deps.Sink.SetCatalog(ctx, products)
	return nil
}

// Trigger asks the running loop for a sync. It never blocks.
func (r *Replayer) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run syncs every interval and whenever connectivity comes back, until ctx
// is done.
func (r *Replayer) Run(ctx context.Context) error {
	r.deps.Connectivity.Subscribe(func(online bool) {
		if online {
			r.Trigger()
		}
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.trigger:
		}
		if _, err := r.Sync(ctx); err != nil && !errors.Is(err, ErrOffline) && !errors.Is(err, ErrSyncing) {
			r.lg.Warn("Sync failed", zap.Error(err))
		}
	}
}

// Sync runs one sync now.
func (r *Replayer) Sync(ctx context.Context) (Report, error) {
	if !r.deps.Connectivity.Online() {
		return Report{}, ErrOffline
	}
	if !r.syncing.CompareAndSwap(false, true) {
		return Report{}, ErrSyncing
	}
	defer r.syncing.Store(false)

	var rep Report
	queued, err := r.replayQueue(ctx, &rep)
	if err != nil {
		return rep, err
	}
	if err := r.postOrphans(ctx, queued, &rep); err != nil {
		return rep, err
	}
	r.refreshCatalog(ctx, &rep)

	r.mu.Lock()
	r.lastSync = r.now()
	r.mu.Unlock()

	r.lg.Info("Sync finished",
		zap.Int("replayed", rep.Replayed),
		zap.Int("posted", rep.Posted),
		zap.Int("failed", rep.Failed),
		zap.Int("dropped", rep.Dropped),
		zap.Int("products", rep.Products),
	)
	return rep, nil
}

// replayQueue sends queued requests and returns the sale ids still queued.
func (r *Replayer) replayQueue(ctx context.Context, rep *Report) (map[string]struct{}, error) {
	pending, err := r.deps.Queue.Pending(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list pending requests")
	}

	queued := make(map[string]struct{})
	for _, req := range pending {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lg := r.lg.With(zap.String("request_id", req.ID), zap.String("sale_id", req.SaleID))

		if req.Retries > r.maxRetries {
			if err := r.deps.Queue.Remove(ctx, req.ID); err != nil {
				return nil, errors.Wrap(err, "drop request")
			}
			lg.Warn("Dropping request after too many retries",
				zap.Int("retries", req.Retries),
				zap.String("last_error", req.LastError),
			)
			rep.Dropped++
			r.metrics.record(ctx, resultDropped)
			continue
		}

		if err := r.deps.Backend.Replay(ctx, req); err != nil {
			lg.Warn("Replay failed", zap.Error(err), zap.Int("retries", req.Retries+1))
			if err := r.deps.Queue.RecordFailure(ctx, req.ID, err.Error()); err != nil {
				return nil, errors.Wrap(err, "record failure")
			}
			if req.SaleID != "" {
				queued[req.SaleID] = struct{}{}
			}
			rep.Failed++
			r.metrics.record(ctx, resultFailed)
			continue
		}

		if err := r.deps.Queue.Remove(ctx, req.ID); err != nil {
			return nil, errors.Wrap(err, "remove replayed request")
		}
		if req.SaleID != "" {
			if err := r.deps.Sales.MarkSynced(ctx, req.SaleID); err != nil {
				return nil, errors.Wrap(err, "mark synced")
			}
		}
		rep.Replayed++
		r.metrics.record(ctx, resultReplayed)
	}
	return queued, nil
}

// postOrphans sends unsynced sales that have no queued request.
func (r *Replayer) postOrphans(ctx context.Context, queued map[string]struct{}, rep *Report) error {
	records, err := r.deps.Sales.UnsyncedSales(ctx)
	if err != nil {
		return errors.Wrap(err, "list unsynced sales")
	}
	for _, rec := range records {
		if _, ok := queued[rec.ID]; ok {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		created, err := r.deps.Backend.CreateSale(ctx, rec.ID, rec.Request())
		if err != nil {
			r.lg.Warn("Posting offline sale failed", zap.String("sale_id", rec.ID), zap.Error(err))
			rep.Failed++
			r.metrics.record(ctx, resultFailed)
			continue
		}
		if err := r.deps.Sales.MarkSynced(ctx, rec.ID); err != nil {
			return errors.Wrap(err, "mark synced")
		}
		r.lg.Info("Offline sale posted",
			zap.String("sale_id", rec.ID),
			zap.String("transaction_id", created.TransactionID()),
		)
		rep.Posted++
		r.metrics.record(ctx, resultPosted)
	}
	return nil
}

// refreshCatalog pulls the catalog. An empty feed keeps the cached catalog.
func (r *Replayer) refreshCatalog(ctx context.Context, rep *Report) {
	products, err := r.deps.Backend.ListProducts(ctx)
	if err != nil {
		r.lg.Warn("Catalog refresh failed", zap.Error(err))
		return
	}
	if len(products) == 0 {
		r.lg.Warn("Backend returned an empty catalog, keeping cached one")
		return
	}
	if err := r.deps.Catalog.ReplaceAll(ctx, products); err != nil {
		r.lg.Warn("Caching catalog failed", zap.Error(err))
	}
	r.deps.Sink.SetCatalog(ctx, products)
	rep.Products = len(products)
}

// Status returns the current sync state.
func (r *Replayer) Status(ctx context.Context) (Status, error) {
	unsynced, err := r.deps.Sales.CountUnsynced(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "count unsynced sales")
	}
	stats, err := r.deps.Queue.Stats(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "queue stats")
	}

	r.mu.Lock()
	last := r.lastSync
	r.mu.Unlock()

	return Status{
		Online:       r.deps.Connectivity.Online(),
		Syncing:      r.syncing.Load(),
		LastSync:     last,
		PendingCount: unsynced,
		FailedCount:  stats.Failed,
	}, nil
}
