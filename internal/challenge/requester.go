// Package challenge registers an identity with the hiring API and turns the
// response into a typed Challenge.
package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// Response keys fixed by the remote contract.
const (
	keyWebhook     = "webhook"
	keyAccessToken = "accessToken"
	keyQuestionURL = "questionUrl"
)

// Requester obtains a Challenge from the registration endpoint.
type Requester struct {
	transport       transport.Transport
	registrationURL string
	logger          *zap.Logger
}

// NewRequester creates a Requester. registrationURL is validated by the
// transport on first use.
func NewRequester(t transport.Transport, registrationURL string, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{transport: t, registrationURL: registrationURL, logger: logger}
}

// Request posts id to the registration endpoint exactly once.
//
// A non-2xx status fails with a RegistrationFailed error and a body that is
// not a JSON object fails with a ResponseParseError. Missing keys are not
// errors: they leave the matching Challenge field absent.
func (r *Requester) Request(ctx context.Context, id Identity) (*Challenge, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return nil, errs.WrapConfiguration(err, "marshal identity", nil)
	}

	r.logger.Info("requesting challenge", zap.String("reg_no", id.RegNo))
	resp, err := r.transport.Send(ctx, http.MethodPost, r.registrationURL, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}, payload)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		r.logger.Error("registration returned non-2xx", zap.Int("status", resp.StatusCode))
		return nil, errs.RegistrationFailed(resp.StatusCode, resp.Body)
	}

	ch, err := ParseChallenge(resp.Body)
	if err != nil {
		return nil, err
	}

	r.logger.Info("challenge received",
		zap.Int("status", resp.StatusCode),
		zap.String("webhook", ch.CallbackURL.OrElse("<absent>")),
		zap.Bool("access_token_present", ch.Credential.IsPresent()),
		zap.Bool("question_url_present", ch.ResourceURL.IsPresent()),
	)
	return ch, nil
}

// ParseChallenge decodes a registration body. The body must be a JSON object;
// each known key is optional, and a JSON null counts as absent.
func ParseChallenge(body []byte) (*Challenge, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errs.ResponseParse(err, "decode registration response")
	}
	if fields == nil {
		return nil, errs.ResponseParse(nil, "registration response is not a JSON object")
	}

	webhook, err := optionalString(fields, keyWebhook)
	if err != nil {
		return nil, err
	}
	token, err := optionalString(fields, keyAccessToken)
	if err != nil {
		return nil, err
	}
	question, err := optionalString(fields, keyQuestionURL)
	if err != nil {
		return nil, err
	}

	return &Challenge{
		CallbackURL: webhook,
		Credential:  token,
		ResourceURL: question,
	}, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (Optional[string], error) {
	raw, ok := fields[key]
	if !ok {
		return None[string](), nil
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return None[string](), nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return None[string](), errs.ResponseParse(err, fmt.Sprintf("registration response key %q is not a string", key))
	}
	return Some(s), nil
}
