package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/commands/geo"
	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/config"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // worst severity is Failure, or a test failed
	exitFatal   = 2 // unreadable input, bad flags or configuration
)

// exitError carries a process exit code through cobra's RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// fatal wraps err so main exits with exitFatal.
func fatal(err error) error { return &exitError{code: exitFatal, err: err} }

// exitForSeverity maps a worst severity to an exit status.
func exitForSeverity(sev status.Severity) error {
	if sev == status.Failure {
		return &exitError{code: exitFailure}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode reports err on stderr and returns the matching exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	// Flag and argument errors from cobra itself.
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitFatal
}

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before every subcommand runs.
	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "geoproc",
	Short: "Command-file workflow engine",
	Long: `geoproc runs command files: plain-text workflows with one command per line,
property expansion with ${Name}, For/If blocks and per-command status tracking.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// setup loads the configuration and attaches the logger to the context.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultFile)
	}
	if err != nil {
		return fatal(fmt.Errorf("load config: %w", err))
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}

// newRegistry returns the registry with every built-in and domain command.
func newRegistry() *command.Registry {
	reg := command.DefaultRegistry()
	geo.Register(reg)
	return reg
}

// parseVars parses repeated --var NAME=VALUE flags on top of base.
func parseVars(base map[string]any, vars []string) (map[string]any, error) {
	out := make(map[string]any, len(base)+len(vars))
	for k, v := range base {
		out[k] = v
	}
	for _, kv := range vars {
		name, value, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q: want NAME=VALUE", kv)
		}
		out[name] = value
	}
	return out, nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "geoproc %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(versionCmd)
}
