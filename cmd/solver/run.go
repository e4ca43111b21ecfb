package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/webhook-solver/internal/answer"
	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/config"
	"github.com/jmerrifield20/webhook-solver/internal/metrics"
	"github.com/jmerrifield20/webhook-solver/internal/report"
	"github.com/jmerrifield20/webhook-solver/internal/resource"
	"github.com/jmerrifield20/webhook-solver/internal/submission"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
	"github.com/jmerrifield20/webhook-solver/internal/workflow"
)

// pushTimeout bounds the Pushgateway call made after the run.
const pushTimeout = 10 * time.Second

// ── run ──────────────────────────────────────────────────────────────────────

func (c *cli) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register, download the question and submit the answer",
		Long: `Run performs one pass of the challenge workflow:

  1. POST the identity to the registration endpoint.
  2. Download the question to resource.destination when a questionUrl is returned.
  3. Submit the final query with the access token as the Authorization header.

A registration failure exits 1. A failed download is logged and the run
continues. Any submission status code is reported and exits 0.

  solver run --name "John Doe" --reg-no REG12347 --email john@example.com \
    --query "SELECT 1;"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("name", "", "identity name")
	f.String("reg-no", "", "identity registration number")
	f.String("email", "", "identity email")
	f.String("registration-url", "", "registration endpoint (default "+config.DefaultRegistrationURL+")")
	f.String("submission-url", "", "submission endpoint (default "+config.DefaultSubmissionURL+")")
	f.String("target", "", "submission target: configured or callback")
	f.String("destination", "", "where to write the question (default "+resource.DefaultDestination+")")
	f.String("query", "", "final SQL query to submit")
	f.String("answer-file", "", `file holding the final query ("-" for stdin)`)
	f.Duration("timeout", 0, "per-request timeout (default 30s)")
	f.Bool("insecure", false, "skip TLS certificate verification (development only)")
	f.Float64("rate-limit", 0, "maximum outbound requests per second (0 disables)")
	f.String("format", "", "report format: text, json, yaml or markdown")
	f.String("log-level", "", "log level: debug, info, warn or error")
	f.String("log-format", "", "log encoding: json or console")
	f.String("pushgateway", "", "Pushgateway URL to push run metrics to")

	c.bindFlags(cmd, map[string]string{
		"identity.name":              "name",
		"identity.reg_no":            "reg-no",
		"identity.email":             "email",
		"endpoints.registration_url": "registration-url",
		"endpoints.submission_url":   "submission-url",
		"submission.target":          "target",
		"resource.destination":       "destination",
		"answer.query":               "query",
		"answer.file":                "answer-file",
		"http.timeout":               "timeout",
		"http.insecure_skip_verify":  "insecure",
		"http.rate_limit_rps":        "rate-limit",
		"report.format":              "format",
		"log.level":                  "log-level",
		"log.format":                 "log-format",
		"metrics.pushgateway_url":    "pushgateway",
	})
	return cmd
}

func (c *cli) run(parent context.Context) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format, c.stderr)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Source != "" {
		logger.Info("loaded config", zap.String("file", cfg.Source))
	} else {
		logger.Debug("no config file found, using defaults and env vars")
	}
	if cfg.HTTP.InsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled")
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	orch, err := c.buildWorkflow(cfg, rec, logger)
	if err != nil {
		return err
	}

	outcome, runErr := orch.Run(ctx)
	rec.RecordRunResult(outcome.Succeeded())
	if outcome.Artifact != nil {
		rec.RecordArtifact(outcome.Artifact.ByteLength)
	}

	format, _ := report.ParseFormat(cfg.ReportFormat)
	if err := report.Write(c.stdout, format, outcome); err != nil {
		logger.Error("write report", zap.Error(err))
	}

	if cfg.Metrics.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		if err := rec.Push(pushCtx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, outcome.RunID.String()); err != nil {
			logger.Warn("metrics push failed", zap.Error(err))
		} else {
			logger.Debug("metrics pushed", zap.String("gateway", cfg.Metrics.PushgatewayURL))
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("interrupted: %w", runErr)
		}
		return runErr
	}
	return nil
}

// buildWorkflow wires the transport, the three steps and the answer source.
func (c *cli) buildWorkflow(cfg *config.Config, rec *metrics.Recorder, logger *zap.Logger) (*workflow.Orchestrator, error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.HTTP.Timeout),
		transport.WithUserAgent(cfg.HTTP.UserAgent),
		transport.WithObserver(rec),
	}
	if cfg.HTTP.InsecureSkipVerify {
		opts = append(opts, transport.WithInsecureSkipVerify())
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		opts = append(opts, transport.WithRateLimit(cfg.HTTP.RateLimitRPS))
	}
	t, err := transport.New(logger, opts...)
	if err != nil {
		return nil, err
	}

	target, err := submission.ParseTarget(cfg.SubmissionTarget)
	if err != nil {
		return nil, err
	}
	submitter := submission.NewSubmitter(t, cfg.SubmissionURL, logger)
	submitter.SetTarget(target)

	answers, err := answer.FromConfig(cfg.AnswerQuery, cfg.AnswerFile, c.stdin)
	if err != nil {
		return nil, err
	}

	orch := workflow.New(
		challenge.NewRequester(t, cfg.RegistrationURL, logger),
		resource.NewFetcher(t, logger),
		submitter,
		answers,
		workflow.Config{Identity: cfg.Identity, Destination: cfg.Destination},
		logger,
	)
	orch.SetTransitionRecorder(rec)
	return orch, nil
}
