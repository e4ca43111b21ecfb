// Package answer supplies the text that is submitted as finalQuery. Producing
// the answer itself happens outside the solver; this package only reads it
// from configuration, a file or standard input.
package answer

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/jmerrifield20/webhook-solver/internal/errs"
)

// StdinPath selects standard input as the answer file.
const StdinPath = "-"

// Provider returns the answer to submit.
type Provider interface {
	Answer(ctx context.Context) (string, error)
}

// Static is an answer given inline.
type Static string

// Answer returns the inline answer.
func (s Static) Answer(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errs.AnswerUnavailable(nil, "answer is empty")
	}
	return string(s), nil
}

// File reads the answer from Path, or from Stdin when Path is "-".
type File struct {
	Path  string
	Stdin io.Reader
}

// Answer reads the whole source. Trailing line breaks are dropped; everything
// else is submitted as written.
func (f File) Answer(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.AnswerUnavailable(err, "read answer")
	}

	var (
		data []byte
		err  error
	)
	if f.Path == StdinPath {
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(f.Path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return "", errs.AnswerUnavailable(err, "read answer from "+f.describe())
	}

	text := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(text) == "" {
		return "", errs.AnswerUnavailable(nil, "answer from "+f.describe()+" is empty")
	}
	return text, nil
}

func (f File) describe() string {
	if f.Path == StdinPath {
		return "stdin"
	}
	return f.Path
}

// FromConfig picks a provider. Exactly one of query and file must be set.
func FromConfig(query, file string, stdin io.Reader) (Provider, error) {
	hasQuery := strings.TrimSpace(query) != ""
	hasFile := strings.TrimSpace(file) != ""
	switch {
	case hasQuery && hasFile:
		return nil, errs.Configuration("answer.query and answer.file are mutually exclusive", nil)
	case hasQuery:
		return Static(query), nil
	case hasFile:
		return File{Path: strings.TrimSpace(file), Stdin: stdin}, nil
	default:
		return nil, errs.Configuration("no answer configured: set answer.query or answer.file", nil)
	}
}
