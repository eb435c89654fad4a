// Package backend is the HTTP client for the sales backend.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-pos/internal/domain/catalog"
	"github.com/xenking/kart-pos/internal/domain/sale"
	"github.com/xenking/kart-pos/internal/wire"
)

// maxBody caps response bodies read into memory.
const maxBody = 16 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	// Transport overrides the base round tripper.
	Transport http.RoundTripper
}

// Client calls the sales backend.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	return &Client{
		base:  base,
		token: cfg.Token,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(rt, opts...),
		},
	}, nil
}

// CreateSale posts a sale. The idempotency key is the local sale id.
func (c *Client) CreateSale(ctx context.Context, idempotencyKey string, req sale.Request) (sale.Created, error) {
	body, err := c.do(ctx, http.MethodPost, "/sale", wire.EncodeSaleRequest(req), idempotencyKey)
	if err != nil {
		return sale.Created{}, err
	}
	return wire.DecodeCreated(body)
}

// Replay sends a queued request verbatim.
func (c *Client) Replay(ctx context.Context, req sale.PendingRequest) error {
	key := req.SaleID
	if key == "" {
		key = req.ID
	}
	_, err := c.do(ctx, req.Method, req.Path, req.Body, key)
	return err
}

// ListProducts fetches the active catalog.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, "/products", nil, "")
	if err != nil {
		return nil, err
	}
	return wire.DecodeProducts(body)
}

// Ping checks the backend health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, "")
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, idempotencyKey string) ([]byte, error) {
	u := c.base.JoinPath(path)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: truncate(string(data), 512)}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
