// Package errs defines the solver's error taxonomy on top of go-errors
// envelopes. Every error that crosses a package boundary carries a text code
// (its Kind), a category and, where one exists, the upstream HTTP status.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Kinds, stored as the envelope's TextCode.
const (
	KindConfiguration      = "CONFIGURATION_ERROR"
	KindTransport          = "TRANSPORT_ERROR"
	KindRegistrationFailed = "REGISTRATION_FAILED"
	KindResponseParse      = "RESPONSE_PARSE_ERROR"
	KindDownloadFailed     = "DOWNLOAD_FAILED"
	KindArtifactWrite      = "ARTIFACT_WRITE_ERROR"
	KindAnswerUnavailable  = "ANSWER_UNAVAILABLE"
	KindUnknown            = "UNKNOWN"
)

// Configuration reports a malformed endpoint or setting. No network call is
// made once one of these is raised.
func Configuration(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, KindConfiguration, http.StatusBadRequest, metadata)
}

// WrapConfiguration is Configuration with an underlying cause.
func WrapConfiguration(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryBadInput, KindConfiguration, message, http.StatusBadRequest, metadata)
}

// Transport reports a connection failure, timeout or unreadable response.
func Transport(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, KindTransport, message, http.StatusBadGateway, metadata)
}

// TransportLimit reports a response body larger than the configured limit.
func TransportLimit(limit int64, metadata map[string]any) error {
	return newError(
		fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
		goerrors.CategoryExternal,
		KindTransport,
		http.StatusBadGateway,
		metadata,
	)
}

// RegistrationFailed reports a non-2xx answer from the registration endpoint.
// The envelope's Code is the upstream status.
func RegistrationFailed(statusCode int, body []byte) error {
	return newError(
		fmt.Sprintf("registration failed with HTTP %d", statusCode),
		goerrors.CategoryExternal,
		KindRegistrationFailed,
		statusCode,
		map[string]any{"status_code": statusCode, "body": snippet(body)},
	)
}

// ResponseParse reports a registration body that is not the expected JSON object.
func ResponseParse(source error, message string) error {
	return wrapError(source, goerrors.CategoryExternal, KindResponseParse, message, http.StatusBadGateway, nil)
}

// DownloadFailed reports a non-2xx answer from the resource URL.
func DownloadFailed(statusCode int, url string) error {
	return newError(
		fmt.Sprintf("download failed with HTTP %d", statusCode),
		goerrors.CategoryExternal,
		KindDownloadFailed,
		statusCode,
		map[string]any{"status_code": statusCode, "url": url},
	)
}

// ArtifactWrite reports a failure to persist a downloaded resource.
func ArtifactWrite(source error, path string) error {
	return wrapError(
		source,
		goerrors.CategoryInternal,
		KindArtifactWrite,
		"write artifact",
		http.StatusInternalServerError,
		map[string]any{"path": path},
	)
}

// AnswerUnavailable reports that no answer could be produced for submission.
func AnswerUnavailable(source error, message string) error {
	if source == nil {
		return newError(message, goerrors.CategoryBadInput, KindAnswerUnavailable, http.StatusBadRequest, nil)
	}
	return wrapError(source, goerrors.CategoryBadInput, KindAnswerUnavailable, message, http.StatusBadRequest, nil)
}

// KindOf returns the text code of err, or KindUnknown when err is not one of ours.
func KindOf(err error) string {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) || rich.TextCode == "" {
		return KindUnknown
	}
	return rich.TextCode
}

// Is reports whether err carries the given kind.
func Is(err error, kind string) bool {
	return err != nil && KindOf(err) == kind
}

// Message renders err for operators: envelope messages joined with their
// sources, without the category, text code and metadata decoration that
// Error() adds. Foreign wrappers keep their own prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if rich, ok := err.(*goerrors.Error); ok {
		msg := strings.TrimSpace(rich.Message)
		if src := errors.Unwrap(rich); src != nil {
			if inner := Message(src); inner != "" && inner != msg {
				if msg == "" {
					return inner
				}
				msg += ": " + inner
			}
		}
		if msg == "" {
			return err.Error()
		}
		return msg
	}
	if inner := errors.Unwrap(err); inner != nil {
		prefix := strings.TrimSuffix(err.Error(), inner.Error())
		return prefix + Message(inner)
	}
	return err.Error()
}

// StatusOf returns the envelope's code, which is the upstream HTTP status
// for RegistrationFailed and DownloadFailed. Zero when err is not ours.
func StatusOf(err error) int {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) {
		return 0
	}
	return rich.Code
}

func newError(message string, category goerrors.Category, kind string, code int, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(kind)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, category goerrors.Category, kind, message string, code int, metadata map[string]any) error {
	if source == nil {
		return newError(message, category, kind, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(kind)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func snippet(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
