// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 5 * time.Second
	// DefaultMaxConns bounds concurrent requests.
	DefaultMaxConns = 4
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "gex"

	// maxResponseBytes caps a single downloaded file (32 MB).
	maxResponseBytes = 32 << 20
)

type (
	// Getter fetches the body of a URL. Non-2xx responses are reported as
	// *StatusError.
	Getter interface {
		Get(ctx context.Context, url string) ([]byte, error)
	}

	// Client is the net/http backed Getter.
	Client struct {
		httpClient *http.Client
		userAgent  string
		timeout    time.Duration
		maxBytes   int64
		conns      *semaphore.Weighted
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithMaxConns bounds the number of requests in flight.
func WithMaxConns(n int) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.conns = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewClient creates a Client with the default timeout, connection bound and
// User-Agent.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  DefaultUserAgent,
		timeout:    DefaultTimeout,
		maxBytes:   maxResponseBytes,
		conns:      semaphore.NewWeighted(DefaultMaxConns),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs a GET request and returns the whole body. Failures other than
// cancellation of ctx wrap ErrTransport or ErrNotFound.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.conns.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.conns.Release(1)

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTransport, url, c.maxBytes)
	}
	return body, nil
}
