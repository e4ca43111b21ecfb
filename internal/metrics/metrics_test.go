package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	r := New()
	r.ObserveRequest("POST", 201, 10*time.Millisecond, nil)
	r.ObserveRequest("POST", 201, 20*time.Millisecond, nil)
	r.ObserveRequest("GET", 0, time.Millisecond, errors.New("refused"))

	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("POST", "201")); got != 2 {
		t.Errorf("POST 201: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.requestsTotal.WithLabelValues("GET", "error")); got != 1 {
		t.Errorf("GET error: got %v, want 1", got)
	}
}

func TestRecordTransitionAndArtifact(t *testing.T) {
	r := New()
	r.RecordTransition("INIT")
	r.RecordTransition("DONE")
	r.RecordTransition("DONE")
	r.RecordArtifact(2048)
	r.RecordRunResult(true)

	if got := testutil.ToFloat64(r.transitions.WithLabelValues("DONE")); got != 2 {
		t.Errorf("DONE transitions: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.artifactBytes); got != 2048 {
		t.Errorf("artifact bytes: got %v", got)
	}
	if got := testutil.ToFloat64(r.lastRunSuccess); got != 1 {
		t.Errorf("last run success: got %v", got)
	}
}

func TestRecordProbe(t *testing.T) {
	r := New()
	r.RecordProbe("registration", true)
	r.RecordProbe("submission", false)

	if got := testutil.ToFloat64(r.endpointUp.WithLabelValues("registration")); got != 1 {
		t.Errorf("registration up: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.endpointUp.WithLabelValues("submission")); got != 0 {
		t.Errorf("submission up: got %v, want 0", got)
	}
}

func TestRecorders_independentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordTransition("FAILED")
	if got := testutil.ToFloat64(b.transitions.WithLabelValues("FAILED")); got != 0 {
		t.Errorf("registries should not share state, got %v", got)
	}
}

func TestPush(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.RecordTransition("DONE")
	if err := r.Push(context.Background(), srv.URL, "webhook_solver", "run-1"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method: got %s, want PUT", gotMethod)
	}
	if gotPath != "/metrics/job/webhook_solver/run_id/run-1" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotBody == "" {
		t.Error("expected a metrics payload")
	}
}

func TestPush_gatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New().Push(context.Background(), srv.URL, "webhook_solver", "")
	if err == nil || !strings.Contains(err.Error(), "push metrics") {
		t.Fatalf("expected push error, got %v", err)
	}
}
