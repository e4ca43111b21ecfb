// Package report renders a finished run for the operator.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmerrifield20/webhook-solver/internal/credential"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/resource"
	"github.com/jmerrifield20/webhook-solver/internal/submission"
	"github.com/jmerrifield20/webhook-solver/internal/workflow"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", errs.Configuration(
			fmt.Sprintf("unknown report format %q: expected text, json, yaml or markdown", s),
			map[string]any{"format": s},
		)
	}
}

// Summary is the serializable view of a run. The credential value itself is
// never included.
type Summary struct {
	RunID              string             `json:"run_id" yaml:"run_id"`
	State              string             `json:"state" yaml:"state"`
	History            []string           `json:"history" yaml:"history"`
	CallbackURL        string             `json:"callback_url,omitempty" yaml:"callback_url,omitempty"`
	CredentialPresent  bool               `json:"credential_present" yaml:"credential_present"`
	Credential         *credential.Info   `json:"credential,omitempty" yaml:"credential,omitempty"`
	ResourceURL        string             `json:"resource_url,omitempty" yaml:"resource_url,omitempty"`
	Artifact           *resource.Artifact `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	DownloadError      string             `json:"download_error,omitempty" yaml:"download_error,omitempty"`
	Submission         *submission.Result `json:"submission,omitempty" yaml:"submission,omitempty"`
	Error              string             `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind          string             `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	DurationMillis     int64              `json:"duration_ms" yaml:"duration_ms"`
	SubmissionAccepted bool               `json:"submission_accepted" yaml:"submission_accepted"`
}

// Summarize flattens an outcome.
func Summarize(o *workflow.Outcome) Summary {
	s := Summary{
		RunID:              o.RunID.String(),
		State:              string(o.State),
		Artifact:           o.Artifact,
		Submission:         o.Submission,
		SubmissionAccepted: o.Submission.OK(),
	}
	for _, st := range o.History {
		s.History = append(s.History, string(st))
	}
	if ch := o.Challenge; ch != nil {
		s.CallbackURL = ch.CallbackURL.OrElse("")
		s.CredentialPresent = ch.Credential.IsPresent()
		s.ResourceURL = ch.ResourceURL.OrElse("")
	}
	if o.Credential != nil && o.Credential.IsJWT {
		s.Credential = o.Credential
	}
	if o.DownloadErr != nil {
		s.DownloadError = errs.Message(o.DownloadErr)
	}
	if o.Err != nil {
		s.Error = errs.Message(o.Err)
		s.ErrorKind = errs.KindOf(o.Err)
	}
	if !o.FinishedAt.IsZero() {
		s.DurationMillis = o.FinishedAt.Sub(o.StartedAt).Milliseconds()
	}
	return s
}

// Write renders o to w in the given format.
func Write(w io.Writer, format Format, o *workflow.Outcome) error {
	s := Summarize(o)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatMarkdown:
		return writeMarkdown(w, s)
	default:
		return writeText(w, s)
	}
}

func writeText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", s.RunID)
	fmt.Fprintf(tw, "State:\t%s\n", s.State)
	fmt.Fprintf(tw, "Webhook:\t%s\n", orDash(s.CallbackURL))
	fmt.Fprintf(tw, "Access token:\t%s\n", credentialLine(s))
	switch {
	case s.Artifact != nil:
		fmt.Fprintf(tw, "Question:\t%s (%d bytes)\n", s.Artifact.LocalPath, s.Artifact.ByteLength)
	case s.DownloadError != "":
		fmt.Fprintf(tw, "Question:\tdownload failed: %s\n", s.DownloadError)
	default:
		fmt.Fprintf(tw, "Question:\tnone\n")
	}
	if s.Submission != nil {
		if s.Submission.Truncated {
			fmt.Fprintf(tw, "Submission status:\t%d (body truncated)\n", s.Submission.StatusCode)
		} else {
			fmt.Fprintf(tw, "Submission status:\t%d\n", s.Submission.StatusCode)
		}
	}
	if s.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s (%s)\n", s.Error, s.ErrorKind)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if s.Submission != nil {
		_, err := fmt.Fprintf(w, "Submission response body: %s\n", s.Submission.Body)
		return err
	}
	return nil
}

func credentialLine(s Summary) string {
	if !s.CredentialPresent {
		return "absent"
	}
	if s.Credential != nil && s.Credential.HasExpiry() {
		return "<REDACTED> (expires " + s.Credential.ExpiresAt.Format(time.RFC3339) + ")"
	}
	return "<REDACTED>"
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
