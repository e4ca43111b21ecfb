// Package health probes the configured endpoints before a run. A probe never
// registers or submits anything: it sends HEAD, falling back to GET when the
// server rejects the method.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// Status values reported per endpoint.
const (
	StatusReachable   = "reachable"
	StatusDegraded    = "degraded"
	StatusUnreachable = "unreachable"
)

// Config holds checker configuration.
type Config struct {
	ProbeTimeout time.Duration
	Concurrency  int
}

// Target is one endpoint to probe.
type Target struct {
	Name string
	URL  string
}

// Result is the outcome of probing one Target.
type Result struct {
	Target
	Status     string
	StatusCode int
	Method     string
	Elapsed    time.Duration
	Err        error
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, reachable bool)

// Checker probes endpoints with bounded concurrency.
type Checker struct {
	transport transport.Transport
	cfg       Config
	onMetrics MetricsRecordFunc
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a new Checker.
func New(t transport.Transport, cfg Config, logger *zap.Logger) *Checker {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		transport: t,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// CheckAll probes every target and returns results in target order.
func (c *Checker) CheckAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := c.probe(ctx, tgt)
			results[i] = res

			if c.onMetrics != nil {
				c.onMetrics(tgt.Name, res.Status != StatusUnreachable)
			}
			switch res.Status {
			case StatusUnreachable:
				c.logger.Warn("health: unreachable",
					zap.String("endpoint", tgt.Name),
					zap.String("url", tgt.URL),
					zap.Error(res.Err),
				)
			case StatusDegraded:
				c.logger.Warn("health: degraded",
					zap.String("endpoint", tgt.Name),
					zap.Int("status", res.StatusCode),
				)
			default:
				c.logger.Debug("health: reachable",
					zap.String("endpoint", tgt.Name),
					zap.Int("status", res.StatusCode),
					zap.Duration("elapsed", res.Elapsed),
				)
			}
		}(i, tgt)
	}

	wg.Wait()
	return results
}

// Healthy reports whether no result is unreachable.
func Healthy(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusUnreachable {
			return false
		}
	}
	return true
}

// probe sends HEAD, then GET when HEAD is not allowed. Any HTTP response
// below 500 counts as reachable.
func (c *Checker) probe(ctx context.Context, tgt Target) Result {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	res := Result{Target: tgt, Method: http.MethodHead}
	start := c.now()

	resp, err := c.transport.Send(ctx, http.MethodHead, tgt.URL, nil, nil)
	if err == nil && (resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
		res.Method = http.MethodGet
		resp, err = c.transport.Fetch(ctx, tgt.URL)
	}
	res.Elapsed = c.now().Sub(start)

	switch {
	case err != nil:
		res.Status = StatusUnreachable
		res.Err = err
	case resp.StatusCode >= 500:
		res.Status = StatusDegraded
		res.StatusCode = resp.StatusCode
	default:
		res.Status = StatusReachable
		res.StatusCode = resp.StatusCode
	}
	return res
}
