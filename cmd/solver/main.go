package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jmerrifield20/webhook-solver/internal/config"
	"github.com/jmerrifield20/webhook-solver/internal/errs"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit status.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "solver: %s\n", errs.Message(err))
		return 1
	}
	return 0
}

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}
	config.SetDefaults(c.v, version)

	root := &cobra.Command{
		Use:   "solver",
		Short: "One-shot webhook challenge solver",
		Long: `solver registers an identity with a hiring endpoint, receives a webhook
and an access token, downloads the question when one is offered, and
submits a final SQL query with the token.

Settings come from solver.yaml (./configs, . or $XDG_CONFIG_HOME/webhook-solver),
SOLVER_* environment variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: search for solver.yaml)")

	root.AddCommand(c.newRunCmd())
	root.AddCommand(c.newCheckCmd())
	root.AddCommand(c.newConfigCmd())
	root.AddCommand(newVersionCmd(stdout))
	return root
}

func (c *cli) load() (*config.Config, error) {
	return config.Load(c.v, c.cfgFile)
}

// bindFlags binds flags to config keys when cmd is about to run, so
// subcommands sharing a key never overwrite each other's binding. Unset flags
// leave the key to the file, the environment and the default.
func (c *cli) bindFlags(cmd *cobra.Command, keys map[string]string) {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for key, flag := range keys {
			if err := c.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind flag %q: %w", flag, err)
			}
		}
		return nil
	}
}

// newLogger builds a zap logger writing to w. Format is "json" or "console".
func newLogger(level, format string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", level, err)
	}

	var enc zapcore.Encoder
	switch format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("invalid log.format %q: expected json or console", format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

// ── config ───────────────────────────────────────────────────────────────────

func (c *cli) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.load(); err != nil {
				return err
			}
			if used := c.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(c.stdout, "# source: %s\n", used)
			}
			enc := yaml.NewEncoder(c.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(c.v.AllSettings()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the solver version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(w, "solver %s\n", version)
		},
	}
}
