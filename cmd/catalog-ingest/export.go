package main

import (
	"bufio"
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/wire"
)

// exportSink writes products as canonical JSON lines to a gzip file.
type exportSink struct {
	f  *os.File
	gz *pgzip.Writer
	w  *bufio.Writer
	e  jx.Encoder
}

func newExportSink(path string) (*exportSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	gz := pgzip.NewWriter(f)
	return &exportSink{f: f, gz: gz, w: bufio.NewWriter(gz)}, nil
}

func (s *exportSink) Upsert(_ context.Context, products []catalog.Product) error {
	for _, p := range products {
		s.e.Reset()
		wire.EncodeProduct(&s.e, p)
		if _, err := s.w.Write(s.e.Bytes()); err != nil {
			return errors.Wrap(err, "write product")
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "write product")
		}
	}
	return nil
}

func (s *exportSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return errors.Wrap(err, "flush")
	}
	if err := s.gz.Close(); err != nil {
		_ = s.f.Close()
		return errors.Wrap(err, "close gzip")
	}
	if err := s.f.Close(); err != nil {
		return errors.Wrap(err, "close file")
	}
	return nil
}
