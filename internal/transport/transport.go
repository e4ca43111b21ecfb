// Package transport performs the solver's outbound HTTP calls. It returns
// whatever status the remote service answers with and never interprets it;
// callers decide what a non-2xx means for their step.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/pkg/endpoint"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxSendBody  = 1 << 20  // 1 MiB
	defaultMaxFetchBody = 10 << 20 // 10 MiB
)

// Transport is the contract the solver's steps depend on.
type Transport interface {
	// Send performs a request with a raw body (usually JSON) and custom headers.
	Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error)
	// Fetch performs a GET and returns the binary payload.
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is the status and body returned by the remote service.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Truncated is set when Send cut Body at the send limit.
	Truncated bool
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer is notified after every request. err is non-nil when no response
// was obtained; statusCode is 0 in that case.
type Observer interface {
	ObserveRequest(method string, statusCode int, elapsed time.Duration, err error)
}

// Client is the HTTP implementation of Transport.
type Client struct {
	httpClient   HTTPDoer
	timeout      time.Duration
	limiter      *rate.Limiter
	userAgent    string
	maxSendBody  int64
	maxFetchBody int64
	observer     Observer
	logger       *zap.Logger
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP doer, overriding WithInsecureSkipVerify.
func WithHTTPClient(hc HTTPDoer) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout bounds every request. Zero disables the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return errs.Configuration("transport: timeout must not be negative", map[string]any{"timeout": d.String()})
		}
		c.timeout = d
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this against a local stub of the hiring API.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return errs.Configuration("transport: default transport is not *http.Transport", nil)
		}
		tr := base.Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.httpClient = &http.Client{Transport: tr}
		return nil
	}
}

// WithRateLimit spaces outbound requests to at most rps per second.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = strings.TrimSpace(ua)
		return nil
	}
}

// WithMaxBodyBytes overrides the response size limits. Zero keeps the default.
func WithMaxBodyBytes(send, fetch int64) Option {
	return func(c *Client) error {
		if send > 0 {
			c.maxSendBody = send
		}
		if fetch > 0 {
			c.maxFetchBody = fetch
		}
		return nil
	}
}

// WithObserver attaches a request observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(c *Client) error {
		c.observer = o
		return nil
	}
}

// New creates an HTTP transport.
//
//	t, err := transport.New(logger,
//	    transport.WithTimeout(30*time.Second),
//	    transport.WithUserAgent("webhook-solver/dev"),
//	)
func New(logger *zap.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		httpClient:   &http.Client{},
		timeout:      defaultTimeout,
		maxSendBody:  defaultMaxSendBody,
		maxFetchBody: defaultMaxFetchBody,
		logger:       logger,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(logger *zap.Logger, opts ...Option) *Client {
	c, err := New(logger, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Send performs method against url with the given headers and body.
func (c *Client) Send(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	return c.do(ctx, method, url, headers, body, c.maxSendBody, true)
}

// Fetch performs a GET against url and returns the raw payload.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, nil, nil, c.maxFetchBody, false)
}

// do executes a single request. The status code is returned as data. A body
// over limit is cut to limit when truncate is set and is an error otherwise.
func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte, limit int64, truncate bool) (*Response, error) {
	target, err := endpoint.Parse(rawURL)
	if err != nil {
		return nil, errs.WrapConfiguration(err, "transport: invalid request url", map[string]any{"url": rawURL})
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Transport(err, "transport: rate limiter", map[string]any{"method": method, "url": target.String()})
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, errs.WrapConfiguration(err, "transport: build request", map[string]any{"method": method, "url": target.String()})
	}
	for key, value := range headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		req.Header.Set(key, value)
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, 0, time.Since(start), err)
		return nil, errs.Transport(err, "transport: execute http request", map[string]any{"method": method, "url": target.String()})
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		c.observe(method, 0, time.Since(start), err)
		return nil, errs.Transport(err, "transport: read response body", map[string]any{"method": method, "status_code": resp.StatusCode})
	}
	truncated := false
	if int64(len(payload)) > limit {
		if !truncate {
			err := errs.TransportLimit(limit, map[string]any{"method": method, "status_code": resp.StatusCode})
			c.observe(method, 0, time.Since(start), err)
			return nil, err
		}
		payload = payload[:limit]
		truncated = true
		c.logger.Warn("response body truncated",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
			zap.Int64("limit", limit),
		)
	}

	elapsed := time.Since(start)
	c.observe(method, resp.StatusCode, elapsed, nil)
	c.logger.Debug("http request",
		zap.String("method", method),
		zap.String("host", target.Host),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", elapsed),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       payload,
		Truncated:  truncated,
	}, nil
}

func (c *Client) observe(method string, status int, elapsed time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status, elapsed, err)
	}
}

var _ Transport = (*Client)(nil)
