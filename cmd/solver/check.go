package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmerrifield20/webhook-solver/internal/health"
	"github.com/jmerrifield20/webhook-solver/internal/metrics"
	"github.com/jmerrifield20/webhook-solver/internal/transport"
)

// ── check ────────────────────────────────────────────────────────────────────

func (c *cli) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the configured endpoints without registering",
		Long: `Check sends HEAD (or GET when HEAD is rejected) to the registration and
submission endpoints and prints one row per endpoint. It never posts the
identity or an answer. It exits 1 when an endpoint gives no HTTP response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.check(cmd)
		},
	}
	cmd.Flags().String("registration-url", "", "registration endpoint")
	cmd.Flags().String("submission-url", "", "submission endpoint")
	cmd.Flags().Duration("timeout", 0, "per-probe timeout (default 30s)")
	cmd.Flags().Bool("insecure", false, "skip TLS certificate verification (development only)")
	c.bindFlags(cmd, map[string]string{
		"endpoints.registration_url": "registration-url",
		"endpoints.submission_url":   "submission-url",
		"http.timeout":               "timeout",
		"http.insecure_skip_verify":  "insecure",
	})
	return cmd
}

func (c *cli) check(cmd *cobra.Command) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format, c.stderr)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rec := metrics.New()
	opts := []transport.Option{
		transport.WithTimeout(cfg.HTTP.Timeout),
		transport.WithUserAgent(cfg.HTTP.UserAgent),
		transport.WithObserver(rec),
	}
	if cfg.HTTP.InsecureSkipVerify {
		opts = append(opts, transport.WithInsecureSkipVerify())
	}
	t, err := transport.New(logger, opts...)
	if err != nil {
		return err
	}

	checker := health.New(t, health.Config{ProbeTimeout: cfg.HTTP.Timeout}, logger)
	checker.SetMetricsRecord(rec.RecordProbe)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := checker.CheckAll(ctx, []health.Target{
		{Name: "registration", URL: cfg.RegistrationURL},
		{Name: "submission", URL: cfg.SubmissionURL},
	})

	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tSTATUS\tHTTP\tMETHOD\tELAPSED\tURL")
	for _, r := range results {
		code := "-"
		if r.StatusCode != 0 {
			code = fmt.Sprint(r.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Name, r.Status, code, r.Method, r.Elapsed.Round(time.Millisecond), r.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !health.Healthy(results) {
		return errors.New("one or more endpoints are unreachable")
	}
	return nil
}
