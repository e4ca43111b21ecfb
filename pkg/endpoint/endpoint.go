// Package endpoint provides parsing and validation for the absolute HTTP(S)
// URLs the solver talks to.
//
// Accepted format: http(s)://host[:port][/path][?query]
//
// Examples:
//
//	https://bfhldevapigw.healthrx.co.in/hiring/generateWebhook/JAVA
//	http://localhost:8080/hiring/testWebhook/JAVA
//
// Relative references, opaque URLs and non-HTTP schemes are rejected before
// any request is built, so a malformed endpoint never reaches the network.
package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// URL represents a parsed, validated endpoint.
type URL struct {
	Scheme string // "http" or "https"
	Host   string // host, including the port when one was given
	Path   string // may be empty
	raw    string
}

// Parse parses an absolute http:// or https:// URL.
func Parse(raw string) (*URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint must not be empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	if !u.IsAbs() {
		return nil, fmt.Errorf("endpoint %q is not an absolute URL", trimmed)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q: expected http or https", u.Scheme)
	}

	if u.Opaque != "" {
		return nil, fmt.Errorf("endpoint %q is opaque", trimmed)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("missing host in endpoint %q", trimmed)
	}
	if err := validateHost(u.Hostname()); err != nil {
		return nil, err
	}

	return &URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   u.Path,
		raw:    trimmed,
	}, nil
}

// String returns the endpoint exactly as it was given, minus surrounding
// whitespace.
func (u *URL) String() string {
	return u.raw
}

// MustParse parses an endpoint and panics on error. Useful in tests and init blocks.
func MustParse(raw string) *URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// Validate reports whether raw is an acceptable endpoint.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// validateHost checks that the host contains no illegal characters.
func validateHost(host string) error {
	if strings.ContainsAny(host, " \\") {
		return fmt.Errorf("host %q contains invalid characters", host)
	}
	return nil
}
