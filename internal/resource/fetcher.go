// Package resource downloads the optional question artifact named by a
// challenge and writes it to a local file.
package resource

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// DefaultDestination is the artifact file name used by the hiring flow.
const DefaultDestination = "question.pdf"

// Artifact describes a successfully persisted download.
type Artifact struct {
	SourceURL  string `json:"source_url" yaml:"source_url"`
	LocalPath  string `json:"local_path" yaml:"local_path"`
	ByteLength int64  `json:"byte_length" yaml:"byte_length"`
}

// Fetcher retrieves challenge resources.
type Fetcher struct {
	transport transport.Transport
	logger    *zap.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(t transport.Transport, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{transport: t, logger: logger}
}

// FetchIfPresent downloads ch.ResourceURL to destination.
//
// It returns (nil, nil) without touching the network when the challenge has
// no resource. A non-2xx status fails with DownloadFailed. Any existing file at
// destination is overwritten; the write is not atomic.
func (f *Fetcher) FetchIfPresent(ctx context.Context, ch *challenge.Challenge, destination string) (*Artifact, error) {
	if !ch.HasResource() {
		f.logger.Info("no questionUrl in challenge; skipping download")
		return nil, nil
	}
	source, _ := ch.ResourceURL.Get()
	if destination == "" {
		destination = DefaultDestination
	}

	resp, err := f.transport.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errs.DownloadFailed(resp.StatusCode, source)
	}

	if err := writeFile(destination, resp.Body); err != nil {
		return nil, errs.ArtifactWrite(err, destination)
	}

	f.logger.Info("question downloaded",
		zap.String("path", destination),
		zap.Int("bytes", len(resp.Body)),
	)
	return &Artifact{
		SourceURL:  source,
		LocalPath:  destination,
		ByteLength: int64(len(resp.Body)),
	}, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // artifact is meant to be readable by the operator
}
