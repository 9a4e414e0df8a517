// Package httpclient provides the outbound HTTP client used for third-party
// APIs: a pooled transport, a default per-request deadline and a response
// hook for logging.
package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hellobirdie/hellobirdie/internal/errors"
)

const (
	// DefaultTimeout applies when the request context carries no deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when a request sets none.
	DefaultUserAgent = "hellobirdie"

	maxIdleConns          = 20
	maxIdleConnsPerHost   = 4
	idleConnTimeout       = 90 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
	dialTimeout           = 10 * time.Second
)

// ResponseHook observes every completed request. resp is nil when err is set.
type ResponseHook func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)

// Config configures a Client. Zero values take the package defaults.
type Config struct {
	Timeout   time.Duration
	UserAgent string

	// Transport replaces the pooled transport, mainly for tests.
	Transport http.RoundTripper
}

// Client wraps http.Client with deadline and User-Agent handling.
// It is safe for concurrent use.
type Client struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string

	hookMu sync.RWMutex
	hook   ResponseHook
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newTransport()
	}

	return &Client{
		client:    &http.Client{Transport: transport},
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Wrap adopts an existing http.Client, keeping its transport and timeout.
func Wrap(hc *http.Client, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{client: hc, userAgent: userAgent}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}
}

// Do sends req bound to ctx. When ctx has no deadline the client timeout is
// applied; the response body stays readable until it is closed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.Newf("nil request").
			Component("httpclient").
			Category(errors.CategoryValidation).
			Build()
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)

	c.hookMu.RLock()
	hook := c.hook
	c.hookMu.RUnlock()
	if hook != nil {
		hook(req, resp, err, time.Since(start))
	}

	if cancel != nil {
		if err != nil {
			cancel()
		} else {
			resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		}
	}
	return resp, err
}

// SetResponseHook installs fn as the response hook. nil removes it.
func (c *Client) SetResponseHook(fn ResponseHook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.hook = fn
}

// Close drops idle pooled connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// cancelBody releases the request deadline once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
