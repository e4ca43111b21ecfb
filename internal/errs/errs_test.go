package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestKindOf_taxonomy(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	cases := []struct {
		name     string
		err      error
		kind     string
		category goerrors.Category
		code     int
	}{
		{"configuration", Configuration("bad url", nil), KindConfiguration, goerrors.CategoryBadInput, http.StatusBadRequest},
		{"transport", Transport(cause, "send", nil), KindTransport, goerrors.CategoryExternal, http.StatusBadGateway},
		{"registration", RegistrationFailed(500, []byte("oops")), KindRegistrationFailed, goerrors.CategoryExternal, 500},
		{"parse", ResponseParse(cause, "decode"), KindResponseParse, goerrors.CategoryExternal, http.StatusBadGateway},
		{"download", DownloadFailed(404, "https://x/q.pdf"), KindDownloadFailed, goerrors.CategoryExternal, 404},
		{"artifact", ArtifactWrite(cause, "question.pdf"), KindArtifactWrite, goerrors.CategoryInternal, http.StatusInternalServerError},
		{"answer", AnswerUnavailable(nil, "empty answer"), KindAnswerUnavailable, goerrors.CategoryBadInput, http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Errorf("KindOf: got %q, want %q", got, tc.kind)
			}
			if !Is(tc.err, tc.kind) {
				t.Errorf("Is(%q) = false", tc.kind)
			}
			if got := StatusOf(tc.err); got != tc.code {
				t.Errorf("StatusOf: got %d, want %d", got, tc.code)
			}

			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", tc.err)
			}
			if rich.Category != tc.category {
				t.Errorf("Category: got %q, want %q", rich.Category, tc.category)
			}
		})
	}
}

func TestKindOf_foreignError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain): got %q, want %q", got, KindUnknown)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil): got %q, want %q", got, KindUnknown)
	}
	if Is(nil, KindTransport) {
		t.Error("Is(nil) should be false")
	}
	if got := StatusOf(errors.New("plain")); got != 0 {
		t.Errorf("StatusOf(plain): got %d, want 0", got)
	}
}

func TestRegistrationFailed_message(t *testing.T) {
	err := RegistrationFailed(503, []byte(strings.Repeat("x", 2000)))
	if !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("message should name the status, got %q", err.Error())
	}
}

func TestSnippet_truncates(t *testing.T) {
	got := snippet([]byte(strings.Repeat("x", 2000)))
	if len(got) != 515 || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet: got %d bytes", len(got))
	}
	if got := snippet([]byte("short")); got != "short" {
		t.Errorf("snippet(short): got %q", got)
	}
}

func TestMessage_dropsEnvelopeDecoration(t *testing.T) {
	got := Message(RegistrationFailed(500, []byte("oops")))
	if got != "registration failed with HTTP 500" {
		t.Errorf("Message: got %q", got)
	}
	if full := RegistrationFailed(500, []byte("oops")).Error(); !strings.Contains(full, "HTTP 500") {
		t.Errorf("Error() should still carry the message, got %q", full)
	}
}

func TestMessage_includesSource(t *testing.T) {
	got := Message(WrapConfiguration(errors.New("open solver.yaml: no such file"), "read config", nil))
	if !strings.HasPrefix(got, "read config") || !strings.Contains(got, "no such file") {
		t.Errorf("Message: got %q", got)
	}
	if strings.Contains(got, "metadata") || strings.Contains(got, KindConfiguration) {
		t.Errorf("Message leaks envelope decoration: %q", got)
	}
}

func TestMessage_foreignWrapperKeepsPrefix(t *testing.T) {
	err := fmt.Errorf("interrupted: %w", Transport(errors.New("context canceled"), "transport: execute http request", nil))
	got := Message(err)
	if !strings.HasPrefix(got, "interrupted: transport: execute http request") {
		t.Errorf("Message: got %q", got)
	}
}

func TestMessage_plainError(t *testing.T) {
	if got := Message(errors.New("boom")); got != "boom" {
		t.Errorf("Message: got %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil): got %q", got)
	}
}
