// Package printing talks to the receipt print server. The print server on
// the terminal is tried first; when it is down the backend's print endpoint
// is used.
package printing

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-pos/internal/domain/printer"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/wire"
)

// Config configures a Client.
type Config struct {
	// URL is the print server on the terminal.
	URL string
	// FallbackURL is the backend print endpoint base. Optional.
	FallbackURL string
	Timeout     time.Duration
	// HealthTimeout bounds the print server availability check.
	HealthTimeout time.Duration

	TracerProvider trace.TracerProvider
}

// Client sends print jobs.
type Client struct {
	primary       *url.URL
	fallback      *url.URL
	healthTimeout time.Duration
	http          *http.Client
	lg            *zap.Logger
}

var _ printer.Lister = (*Client)(nil)

// New creates a Client.
func New(cfg Config, lg *zap.Logger) (*Client, error) {
	primary, err := parseBase(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "print server url")
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	c := &Client{
		primary:       primary,
		healthTimeout: cfg.HealthTimeout,
		lg:            lg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = 2 * time.Second
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = 15 * time.Second
	}
	if cfg.FallbackURL != "" {
		if c.fallback, err = parseBase(cfg.FallbackURL); err != nil {
			return nil, errors.Wrap(err, "print fallback url")
		}
	}
	return c, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("%q must be absolute", raw)
	}
	return u, nil
}

// Available reports whether the terminal print server answers its health
// check with status "ok".
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	body, err := c.do(ctx, c.primary, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	var status string
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "status" {
			s, err := d.Str()
			status = s
			return err
		}
		return d.Skip()
	}); err != nil {
		return false
	}
	return status == "ok"
}

// Printers lists printers from the print server, or from the fallback.
func (c *Client) Printers(ctx context.Context) ([]printer.Descriptor, error) {
	if c.Available(ctx) {
		body, err := c.do(ctx, c.primary, http.MethodGet, "/printers", nil)
		if err == nil {
			return wire.DecodePrinters(body)
		}
		c.lg.Warn("Print server printer list failed, trying fallback", zap.Error(err))
	}
	if c.fallback == nil {
		return nil, errors.New("print server unavailable")
	}
	body, err := c.do(ctx, c.fallback, http.MethodGet, "/printers", nil)
	if err != nil {
		return nil, err
	}
	return wire.DecodePrinters(body)
}

// Print sends one receipt.
func (c *Client) Print(ctx context.Context, p printer.Descriptor, r sale.Receipt, job printer.Job) error {
	payload := wire.EncodePrintRequest(p, r, job)

	if c.Available(ctx) {
		_, err := c.do(ctx, c.primary, http.MethodPost, "/print-receipt", payload)
		if err == nil {
			return nil
		}
		c.lg.Warn("Print server rejected receipt, trying fallback", zap.Error(err))
	}
	if c.fallback == nil {
		return errors.New("print server unavailable")
	}
	if _, err := c.do(ctx, c.fallback, http.MethodPost, "/print-receipt", payload); err != nil {
		return errors.Wrap(err, "fallback print")
	}
	return nil
}

func (c *Client) do(ctx context.Context, base *url.URL, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, base.JoinPath(path).String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, errorMessage(data))
	}
	return data, nil
}

// errorMessage extracts "message" or "error" from a JSON error body.
func errorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "message", "error":
			if d.Next() == jx.String && msg == "" {
				s, err := d.Str()
				msg = s
				return err
			}
		}
		return d.Skip()
	})
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return msg
}
