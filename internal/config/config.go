// Package config loads solver settings from a YAML file, SOLVER_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/webhook-solver/internal/challenge"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
	"github.com/jmerrifield20/webhook-solver/internal/report"
	"github.com/jmerrifield20/webhook-solver/internal/resource"
	"github.com/jmerrifield20/webhook-solver/internal/submission"
	"github.com/jmerrifield20/webhook-solver/pkg/endpoint"
)

// AppName names the XDG config directory.
const AppName = "webhook-solver"

// Endpoints used by the hiring flow when nothing else is configured.
const (
	DefaultRegistrationURL = "https://bfhldevapigw.healthrx.co.in/hiring/generateWebhook/JAVA"
	DefaultSubmissionURL   = "https://bfhldevapigw.healthrx.co.in/hiring/testWebhook/JAVA"
)

// Config is the typed view of every setting.
type Config struct {
	Identity         challenge.Identity
	RegistrationURL  string
	SubmissionURL    string
	SubmissionTarget string
	Destination      string
	AnswerQuery      string
	AnswerFile       string
	HTTP             HTTPConfig
	Metrics          MetricsConfig
	Log              LogConfig
	ReportFormat     string

	// Source is the config file that was read, empty when none was found.
	Source string
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	RateLimitRPS       float64
	UserAgent          string
}

// MetricsConfig configures the optional Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper, version string) {
	v.SetDefault("identity.name", "")
	v.SetDefault("identity.reg_no", "")
	v.SetDefault("identity.email", "")
	v.SetDefault("endpoints.registration_url", DefaultRegistrationURL)
	v.SetDefault("endpoints.submission_url", DefaultSubmissionURL)
	v.SetDefault("submission.target", "configured")
	v.SetDefault("resource.destination", resource.DefaultDestination)
	v.SetDefault("answer.query", "")
	v.SetDefault("answer.file", "")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.user_agent", AppName+"/"+version)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "webhook_solver")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("report.format", "text")
}

// SearchPaths lists the directories searched for solver.yaml.
func SearchPaths() []string {
	return []string{"configs", ".", filepath.Join(xdg.ConfigHome, AppName)}
}

// Load reads configuration into a Config. When cfgFile is empty the search
// paths are tried and a missing file is not an error. Validate is not called.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("solver")
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}
	v.SetEnvPrefix("SOLVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &cfgNotFound) {
			return nil, errs.WrapConfiguration(err, "read config", map[string]any{"file": cfgFile})
		}
	}

	return &Config{
		Identity: challenge.Identity{
			Name:  v.GetString("identity.name"),
			RegNo: v.GetString("identity.reg_no"),
			Email: v.GetString("identity.email"),
		},
		RegistrationURL:  v.GetString("endpoints.registration_url"),
		SubmissionURL:    v.GetString("endpoints.submission_url"),
		SubmissionTarget: v.GetString("submission.target"),
		Destination:      v.GetString("resource.destination"),
		AnswerQuery:      v.GetString("answer.query"),
		AnswerFile:       v.GetString("answer.file"),
		HTTP: HTTPConfig{
			Timeout:            v.GetDuration("http.timeout"),
			InsecureSkipVerify: v.GetBool("http.insecure_skip_verify"),
			RateLimitRPS:       v.GetFloat64("http.rate_limit_rps"),
			UserAgent:          v.GetString("http.user_agent"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("metrics.pushgateway_url"),
			Job:            v.GetString("metrics.job"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		ReportFormat: v.GetString("report.format"),
		Source:       v.ConfigFileUsed(),
	}, nil
}

// Validate checks everything that can be checked without the network.
// Every failure is a configuration error.
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := endpoint.Validate(c.RegistrationURL); err != nil {
		return errs.WrapConfiguration(err, "invalid endpoints.registration_url", map[string]any{"url": c.RegistrationURL})
	}
	if err := endpoint.Validate(c.SubmissionURL); err != nil {
		return errs.WrapConfiguration(err, "invalid endpoints.submission_url", map[string]any{"url": c.SubmissionURL})
	}
	if c.Metrics.PushgatewayURL != "" {
		if err := endpoint.Validate(c.Metrics.PushgatewayURL); err != nil {
			return errs.WrapConfiguration(err, "invalid metrics.pushgateway_url", map[string]any{"url": c.Metrics.PushgatewayURL})
		}
	}
	if c.HTTP.Timeout <= 0 {
		return errs.Configuration(fmt.Sprintf("invalid http.timeout %s: must be positive", c.HTTP.Timeout), nil)
	}
	if c.HTTP.RateLimitRPS < 0 {
		return errs.Configuration("invalid http.rate_limit_rps: must be non-negative", nil)
	}
	if _, err := submission.ParseTarget(c.SubmissionTarget); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.ReportFormat); err != nil {
		return err
	}
	if strings.TrimSpace(c.Destination) == "" {
		return errs.Configuration("resource.destination must not be empty", nil)
	}
	hasQuery := strings.TrimSpace(c.AnswerQuery) != ""
	hasFile := strings.TrimSpace(c.AnswerFile) != ""
	if hasQuery == hasFile {
		return errs.Configuration("exactly one of answer.query and answer.file must be set", nil)
	}
	return nil
}
