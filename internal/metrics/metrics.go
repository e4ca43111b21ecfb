// Package metrics records what a single solver run did: outbound requests,
// workflow transitions and the artifact size. A one-shot process has no
// scrape endpoint, so the registry is optionally pushed to a Pushgateway
// when the run ends.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry so repeated runs in one process (tests)
// never collide on the default registerer.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	artifactBytes   prometheus.Gauge
	lastRunSuccess  prometheus.Gauge
	endpointUp      *prometheus.GaugeVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solver_http_requests_total",
			Help: "Outbound HTTP requests by method and response status.",
		}, []string{"method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solver_http_request_duration_seconds",
			Help:    "Outbound HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "solver_workflow_transitions_total",
			Help: "Workflow state transitions by target state.",
		}, []string{"state"}),
		artifactBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "solver_artifact_bytes",
			Help: "Size of the downloaded question artifact.",
		}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "solver_last_run_success",
			Help: "1 when the last run reached DONE, 0 otherwise.",
		}),
		endpointUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solver_endpoint_up",
			Help: "1 when the last probe of an endpoint got an HTTP response.",
		}, []string{"endpoint"}),
	}
}

// ObserveRequest implements transport.Observer.
func (r *Recorder) ObserveRequest(method string, statusCode int, elapsed time.Duration, err error) {
	status := strconv.Itoa(statusCode)
	if err != nil {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(method, status).Inc()
	r.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordTransition counts a workflow state change.
func (r *Recorder) RecordTransition(state string) {
	r.transitions.WithLabelValues(state).Inc()
}

// RecordArtifact sets the artifact size gauge.
func (r *Recorder) RecordArtifact(bytes int64) {
	r.artifactBytes.Set(float64(bytes))
}

// RecordRunResult sets the success gauge.
func (r *Recorder) RecordRunResult(success bool) {
	if success {
		r.lastRunSuccess.Set(1)
	} else {
		r.lastRunSuccess.Set(0)
	}
}

// RecordProbe sets the reachability gauge for one endpoint.
func (r *Recorder) RecordProbe(endpoint string, reachable bool) {
	v := 0.0
	if reachable {
		v = 1
	}
	r.endpointUp.WithLabelValues(endpoint).Set(v)
}

// Registry exposes the underlying registry, for tests and custom gatherers.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Push sends every collected metric to a Pushgateway under job, grouped by
// run ID. It replaces any previous group with the same labels.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job, runID string) error {
	pusher := push.New(gatewayURL, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
