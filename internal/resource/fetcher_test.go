package resource_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/resource"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// countingTransport records every call made through it.
type countingTransport struct{ calls int }

func (c *countingTransport) Send(context.Context, string, string, map[string]string, []byte) (*transport.Response, error) {
	c.calls++
	return &transport.Response{StatusCode: http.StatusOK}, nil
}

func (c *countingTransport) Fetch(context.Context, string) (*transport.Response, error) {
	c.calls++
	return &transport.Response{StatusCode: http.StatusOK}, nil
}

func TestFetchIfPresent_absentMakesNoCall(t *testing.T) {
	tr := &countingTransport{}
	f := resource.NewFetcher(tr, zap.NewNop())
	dest := filepath.Join(t.TempDir(), "question.pdf")

	ch := &challenge.Challenge{
		CallbackURL: challenge.Some("https://x/cb"),
		Credential:  challenge.Some("tok123"),
	}
	art, err := f.FetchIfPresent(context.Background(), ch, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if art != nil {
		t.Errorf("expected no artifact, got %+v", art)
	}
	if tr.calls != 0 {
		t.Errorf("expected no network call, got %d", tr.calls)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("no file should be written, stat err=%v", err)
	}
}

func TestFetchIfPresent_writesBytesVerbatim(t *testing.T) {
	payload := []byte("%PDF-1.4\x00\x01\x02\xff binary \r\n tail")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "question.pdf")
	f := resource.NewFetcher(transport.MustNew(zap.NewNop()), zap.NewNop())
	ch := &challenge.Challenge{ResourceURL: challenge.Some(srv.URL + "/q.pdf")}

	art, err := f.FetchIfPresent(context.Background(), ch, dest)
	if err != nil {
		t.Fatalf("FetchIfPresent: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("file contents differ: got %q", got)
	}
	if art.ByteLength != int64(len(payload)) || art.LocalPath != dest || art.SourceURL != srv.URL+"/q.pdf" {
		t.Errorf("unexpected artifact: %+v", art)
	}
}

func TestFetchIfPresent_overwritesExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "question.pdf")
	if err := os.WriteFile(dest, []byte("old content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := resource.NewFetcher(transport.MustNew(zap.NewNop()), zap.NewNop())
	ch := &challenge.Challenge{ResourceURL: challenge.Some(srv.URL)}
	if _, err := f.FetchIfPresent(context.Background(), ch, dest); err != nil {
		t.Fatalf("FetchIfPresent: %v", err)
	}

	got, _ := os.ReadFile(dest)
	if string(got) != "new" {
		t.Errorf("expected file to be overwritten, got %q", got)
	}
}

func TestFetchIfPresent_non2xxIsDownloadFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "question.pdf")
	f := resource.NewFetcher(transport.MustNew(zap.NewNop()), zap.NewNop())
	ch := &challenge.Challenge{ResourceURL: challenge.Some(srv.URL)}

	art, err := f.FetchIfPresent(context.Background(), ch, dest)
	if !errs.Is(err, errs.KindDownloadFailed) {
		t.Fatalf("expected download failure, got %v", err)
	}
	if errs.StatusOf(err) != http.StatusNotFound {
		t.Errorf("StatusOf: got %d", errs.StatusOf(err))
	}
	if art != nil {
		t.Errorf("expected nil artifact, got %+v", art)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("no file should be written on failure, stat err=%v", err)
	}
}

func TestFetchIfPresent_unwritableDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()

	// A directory where the file should go cannot be overwritten by WriteFile.
	dest := t.TempDir()
	f := resource.NewFetcher(transport.MustNew(zap.NewNop()), zap.NewNop())
	ch := &challenge.Challenge{ResourceURL: challenge.Some(srv.URL)}

	_, err := f.FetchIfPresent(context.Background(), ch, dest)
	if !errs.Is(err, errs.KindArtifactWrite) {
		t.Fatalf("expected artifact write error, got %v", err)
	}
}
