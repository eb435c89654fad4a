package main

import (
	"bufio"
	"context"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/wire"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 1 << 20
)

// ErrCollisions is returned in strict mode when identifiers collide.
var ErrCollisions = errors.New("catalog identifier collisions")

type options struct {
	files     []string
	strict    bool
	dryRun    bool
	batchSize int
	expected  uint
}

// sink receives the catalog in file order.
type sink interface {
	Upsert(ctx context.Context, products []catalog.Product) error
}

type summary struct {
	Products   int
	Candidates int
	Collisions []catalog.Collision
}

// ingest checks the feeds for colliding identifiers and writes every product
// to dst in file order, so the later product owns a shared key. A nil dst
// only checks.
//
// Pass 1 builds a bloom filter per file and notes keys seen twice within a
// file. Pass 2 tests every key against the other files' filters. Pass 3
// confirms candidates exactly while loading.
func ingest(ctx context.Context, lg *zap.Logger, opts options, dst sink) (summary, error) {
	if opts.batchSize <= 0 {
		opts.batchSize = 1000
	}
	if opts.expected == 0 {
		opts.expected = 1_000_000
	}

	lg.Info("Pass 1: building bloom filters", zap.Int("files", len(opts.files)))
	filters, local, err := buildFilters(ctx, lg, opts)
	if err != nil {
		return summary{}, errors.Wrap(err, "build bloom filters")
	}

	lg.Info("Pass 2: finding candidate keys")
	candidates, err := findCandidates(ctx, lg, opts.files, filters)
	if err != nil {
		return summary{}, errors.Wrap(err, "find candidate keys")
	}
	for _, m := range local {
		for k := range m {
			candidates[k] = struct{}{}
		}
	}
	lg.Info("Candidate keys found", zap.Int("count", len(candidates)))

	lg.Info("Pass 3: confirming collisions and loading")
	sum, err := load(ctx, lg, opts, candidates, dst)
	if err != nil {
		return sum, err
	}

	for _, c := range sum.Collisions {
		lg.Warn("Catalog key collision",
			zap.String("key", c.Key),
			zap.String("previous", c.Previous),
			zap.String("winner", c.Winner),
		)
	}
	lg.Info("Catalog checked",
		zap.Int("products", sum.Products),
		zap.Int("candidates", sum.Candidates),
		zap.Int("collisions", len(sum.Collisions)),
	)
	if opts.strict && len(sum.Collisions) > 0 {
		return sum, errors.Wrapf(ErrCollisions, "%d keys", len(sum.Collisions))
	}
	return sum, nil
}

func buildFilters(ctx context.Context, lg *zap.Logger, opts options) ([]*bloom.BloomFilter, []map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(opts.files))
	local := make([]map[string]struct{}, len(opts.files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range opts.files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.expected, bloomFPR)
			seen := make(map[string]struct{})
			var count int
			if err := streamProducts(ctx, path, func(p catalog.Product) error {
				for _, k := range p.Keys() {
					if filter.TestAndAddString(k) {
						seen[k] = struct{}{}
					}
				}
				count++
				if count%progressEvery == 0 {
					lg.Info("Pass 1 progress", zap.String("file", path), zap.Int("products", count))
				}
				return nil
			}); err != nil {
				return err
			}
			lg.Info("Pass 1 complete", zap.String("file", path), zap.Int("products", count))
			filters[i] = filter
			local[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return filters, local, nil
}

// findCandidates re-streams each file and tests its keys against the other
// files' filters.
func findCandidates(ctx context.Context, lg *zap.Logger, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	if len(files) < 2 {
		return make(map[string]struct{}), nil
	}
	results := make([]map[string]struct{}, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]struct{})
			if err := streamProducts(ctx, path, func(p catalog.Product) error {
				for _, k := range p.Keys() {
					for j, f := range filters {
						if j != i && f.TestString(k) {
							found[k] = struct{}{}
							break
						}
					}
				}
				return nil
			}); err != nil {
				return err
			}
			lg.Info("Pass 2 complete", zap.String("file", path), zap.Int("candidates", len(found)))
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]struct{})
	for _, r := range results {
		for k := range r {
			merged[k] = struct{}{}
		}
	}
	return merged, nil
}

// load streams the files in order, tracking the owner of every candidate key,
// and hands products to dst in batches.
func load(ctx context.Context, lg *zap.Logger, opts options, candidates map[string]struct{}, dst sink) (summary, error) {
	sum := summary{Candidates: len(candidates)}
	owners := make(map[string]string, len(candidates))
	batch := make([]catalog.Product, 0, opts.batchSize)

	flush := func() error {
		if dst == nil || len(batch) == 0 {
			batch = batch[:0]
			return nil
		}
		if err := dst.Upsert(ctx, batch); err != nil {
			return errors.Wrap(err, "upsert products")
		}
		batch = batch[:0]
		return nil
	}

	for _, path := range opts.files {
		if err := streamProducts(ctx, path, func(p catalog.Product) error {
			for _, k := range p.Keys() {
				if _, ok := candidates[k]; !ok {
					continue
				}
				if prev, ok := owners[k]; ok && prev != p.ID {
					sum.Collisions = append(sum.Collisions, catalog.Collision{Key: k, Previous: prev, Winner: p.ID})
				}
				owners[k] = p.ID
			}
			sum.Products++
			batch = append(batch, p)
			if len(batch) == opts.batchSize {
				if err := flush(); err != nil {
					return err
				}
				lg.Info("Load progress", zap.Int("products", sum.Products))
			}
			return nil
		}); err != nil {
			return sum, err
		}
	}
	if err := flush(); err != nil {
		return sum, err
	}
	return sum, nil
}

// streamProducts opens a gzip-compressed JSON-lines file and calls fn for
// each product. Blank lines are skipped.
func streamProducts(ctx context.Context, path string, fn func(p catalog.Product) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var line int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		p, err := wire.ReadProduct(jx.DecodeBytes(data))
		if err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
