// Command catalog-ingest loads gzipped JSON-lines catalog exports into the
// local store, reporting products that share a barcode, code or SKU.
//
//	catalog-ingest -database-url postgres://... feed1.jsonl.gz feed2.jsonl.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		export      string
		opts        options
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&export, "export", "", "write the merged catalog to this .jsonl.gz file instead of the database")
	flag.BoolVar(&opts.strict, "strict", false, "fail when two products share an identifier")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "check for collisions without writing anything")
	flag.IntVar(&opts.batchSize, "batch", 1000, "products per upsert batch")
	flag.UintVar(&opts.expected, "expected", 1_000_000, "expected identifiers per file, sizes the bloom filters")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] FILE.jsonl.gz...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	opts.files = flag.Args()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if len(opts.files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts, databaseURL, export); err != nil {
		lg.Error("Catalog ingest failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Catalog ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options, databaseURL, export string) error {
	switch {
	case opts.dryRun:
		_, err := ingest(ctx, lg, opts, nil)
		return err
	case export != "":
		sink, err := newExportSink(export)
		if err != nil {
			return err
		}
		if _, err := ingest(ctx, lg, opts, sink); err != nil {
			_ = sink.Close()
			return err
		}
		return sink.Close()
	}

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return errors.New("database URL is required: set -database-url or DATABASE_URL")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	_, err = ingest(ctx, lg, opts, postgres.NewCatalogRepository(pool))
	return err
}
