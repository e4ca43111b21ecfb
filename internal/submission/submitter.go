// Package submission posts the final answer to the hiring API, authenticated
// with the credential issued at registration.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// Target selects where the answer is posted.
type Target string

const (
	// TargetConfigured posts to the fixed submission URL.
	TargetConfigured Target = "configured"
	// TargetCallback posts to the webhook URL issued at registration.
	TargetCallback Target = "callback"
)

// ParseTarget validates a target name. Empty means TargetConfigured.
func ParseTarget(s string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(s))) {
	case "", TargetConfigured:
		return TargetConfigured, nil
	case TargetCallback:
		return TargetCallback, nil
	default:
		return "", errs.Configuration(
			fmt.Sprintf("unknown submission target %q: expected %q or %q", s, TargetConfigured, TargetCallback),
			map[string]any{"target": s},
		)
	}
}

// Result is the remote answer to a submission. It is returned for every
// status code.
type Result struct {
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Body       string `json:"body" yaml:"body"`
	Truncated  bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// OK reports whether the submission was accepted with a 2xx status.
func (r *Result) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type payload struct {
	FinalQuery string `json:"finalQuery"`
}

// Submitter posts answers.
type Submitter struct {
	transport     transport.Transport
	submissionURL string
	target        Target
	logger        *zap.Logger
}

// NewSubmitter creates a Submitter that posts to submissionURL.
func NewSubmitter(t transport.Transport, submissionURL string, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		transport:     t,
		submissionURL: submissionURL,
		target:        TargetConfigured,
		logger:        logger,
	}
}

// SetTarget switches between the configured URL and the challenge callback.
func (s *Submitter) SetTarget(t Target) {
	s.target = t
}

// Submit posts {"finalQuery": answer}. The challenge credential, when present,
// is sent verbatim as the Authorization header; when absent the header is
// omitted. Non-2xx responses are returned as a Result, not as an error.
func (s *Submitter) Submit(ctx context.Context, ch *challenge.Challenge, answer string) (*Result, error) {
	url, err := s.resolveURL(ch)
	if err != nil {
		return nil, err
	}

	body, err := encodePayload(answer)
	if err != nil {
		return nil, errs.AnswerUnavailable(err, "encode submission payload")
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if token, ok := ch.Credential.Get(); ok {
		headers["Authorization"] = token
	}

	s.logger.Info("submitting answer",
		zap.String("target", string(s.target)),
		zap.Bool("authorized", ch.Credential.IsPresent()),
		zap.Int("answer_bytes", len(answer)),
	)
	resp, err := s.transport.Send(ctx, http.MethodPost, url, headers, body)
	if err != nil {
		return nil, err
	}

	result := &Result{StatusCode: resp.StatusCode, Body: string(resp.Body), Truncated: resp.Truncated}
	if result.OK() {
		s.logger.Info("submission accepted", zap.Int("status", resp.StatusCode))
	} else {
		s.logger.Warn("submission returned non-2xx", zap.Int("status", resp.StatusCode))
	}
	return result, nil
}

func (s *Submitter) resolveURL(ch *challenge.Challenge) (string, error) {
	if s.target != TargetCallback {
		return s.submissionURL, nil
	}
	callback, ok := ch.CallbackURL.Get()
	if !ok {
		return "", errs.Configuration("submission target is callback but registration returned no webhook", nil)
	}
	return callback, nil
}

// encodePayload marshals the body without HTML escaping so SQL operators such
// as <> and & reach the server as written.
func encodePayload(answer string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload{FinalQuery: answer}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
