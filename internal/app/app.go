package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pos/internal/backend"
	"github.com/xenking/kart-pos/internal/connectivity"
	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/settlement"
	"github.com/xenking/kart-pos/internal/handler"
	"github.com/xenking/kart-pos/internal/printing"
	"github.com/xenking/kart-pos/internal/register"
	"github.com/xenking/kart-pos/internal/replay"
	"github.com/xenking/kart-pos/internal/storage/postgres"
	"github.com/xenking/kart-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the register API, the backend probe and
// the replay worker, and handles graceful shutdown. It is the single wiring
// point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("terminal", cfg.Terminal.ID),
	)

	// Local store: the catalog cache, offline sales, the replay queue and the
	// saved printer survive restarts.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	catalogRepo := postgres.NewCatalogRepository(pool)
	offlineStore := postgres.NewOfflineSaleStore(pool)
	queue := postgres.NewPendingRequestQueue(pool)
	printerStore := postgres.NewPrinterPreferenceStore(pool)

	bc, err := backend.New(backend.Config{
		BaseURL:        cfg.Backend.URL,
		Token:          cfg.Backend.Token,
		Timeout:        cfg.Backend.Timeout,
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	// Backend reachability plus local health checks.
	monitor := connectivity.NewMonitor(bc.Ping, cfg.Sync.ProbeTimeout, lg)
	monitor.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	monitor.AddLivenessCheck("goroutines", time.Second, connectivity.GoroutineCountCheck(10000))
	monitor.Start(ctx, cfg.Sync.ProbeInterval)
	defer monitor.Stop()

	printClient, err := printing.New(printing.Config{
		URL:            cfg.Print.URL,
		FallbackURL:    cfg.Print.FallbackURL,
		Timeout:        cfg.Print.Timeout,
		HealthTimeout:  cfg.Print.HealthTimeout,
		TracerProvider: m.TracerProvider(),
	}, lg)
	if err != nil {
		return errors.Wrap(err, "create print client")
	}
	selector := printer.NewSelector(cfg.Terminal.ID, printerStore, printClient)
	receipts := printing.NewReceipts(printClient, selector, printer.Job{
		Copies:     cfg.Print.Copies,
		Cut:        cfg.Print.Cut,
		OpenDrawer: cfg.Print.OpenDrawer,
	})

	engine, err := settlement.NewEngine(settlement.Deps{
		Sales:        bc,
		Store:        offlineStore,
		Queue:        queue,
		Printer:      receipts,
		Connectivity: monitor,
	}, settlement.Terminal{
		BranchID:     cfg.Terminal.BranchID,
		EmployeeID:   cfg.Terminal.EmployeeID,
		StoreName:    cfg.Terminal.StoreName,
		Address:      cfg.Terminal.Address,
		Cashier:      cfg.Terminal.Cashier,
		CustomerType: cfg.Terminal.CustomerType,
	}, lg,
		settlement.WithTracerProvider(m.TracerProvider()),
		settlement.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create settlement engine")
	}

	reg, err := register.New(register.Config{
		SettleDelay: cfg.Scan.SettleDelay,
		QuietPeriod: cfg.Scan.QuietPeriod,
		Clock:       clockwork.NewRealClock(),
		Meter:       m.MeterProvider().Meter("kart-pos/register"),
	}, engine, lg)
	if err != nil {
		return errors.Wrap(err, "create register")
	}

	replayer, err := replay.New(replay.Config{
		Interval:   cfg.Sync.Interval,
		MaxRetries: cfg.Sync.MaxRetries,
		Meter:      m.MeterProvider().Meter("kart-pos/replay"),
	}, replay.Deps{
		Backend:      bc,
		Queue:        queue,
		Sales:        offlineStore,
		Catalog:      catalogRepo,
		Sink:         reg,
		Connectivity: monitor,
	}, lg)
	if err != nil {
		return errors.Wrap(err, "create replayer")
	}

	// The cached catalog lets the register sell before the first sync.
	if err := replayer.Warm(ctx); err != nil {
		lg.Warn("Catalog cache unavailable", zap.Error(err))
	}
	monitor.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", monitor.LiveEndpoint)
	mux.HandleFunc("/readyz", monitor.ReadyEndpoint)
	handler.New(reg, selector, replayer).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Confirming a payment waits on the backend and the printer.
		WriteTimeout:   cfg.Backend.Timeout + cfg.Print.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(mux,
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					Origins: cfg.CORS.Origins,
					Headers: []string{"Content-Type", httpmiddleware.HeaderRequestID},
					MaxAge:  86400,
				}),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.LogRequests(),
			),
			"kart-pos",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := selector.Resolve(gctx); err != nil {
			// Retried on the first print.
			lg.Warn("Printer not resolved", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		return replayer.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		monitor.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
