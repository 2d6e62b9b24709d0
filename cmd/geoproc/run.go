package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
	"github.com/ormasoftchile/geoproc/pkg/kernel/trace"
	"github.com/ormasoftchile/geoproc/pkg/tui"
)

// --- run ---

var (
	runVars          []string
	runStopOnFailure bool
	runTrace         string
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run [file.gp]",
	Short: "Run a command file",
	Long: `Load, validate and run a command file, then list every command that
recorded a Warning or Failure.

Exit codes:
  0: worst status is Success or Warning
  1: at least one command failed
  2: the file could not be read, or the run was cancelled`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx := cmd.Context()
	values, err := parseVars(cfg.PropertyValues(), runVars)
	if err != nil {
		return fatal(err)
	}

	out := cmd.OutOrStdout()
	printed := out
	if runQuiet {
		printed = io.Discard
	}
	opts := []processor.Option{
		processor.WithRegistry(newRegistry()),
		processor.WithOutput(printed),
		processor.WithProperties(values),
		processor.WithStopOnFailure(runStopOnFailure || cfg.Processor.StopOnFailure),
	}

	tracePath := runTrace
	if tracePath == "" {
		tracePath = cfg.Processor.Trace
	}
	if tracePath != "" {
		tw, err := trace.NewFileWriter(tracePath, "")
		if err != nil {
			return fatal(err)
		}
		defer tw.Close()
		redactor, err := cfg.Redactor()
		if err != nil {
			return fatal(err)
		}
		tw.SetRedactor(redactor)
		opts = append(opts, processor.WithTrace(tw))
	}

	p := processor.New(opts...)
	if err := p.LoadFile(path); err != nil {
		return fatal(err)
	}
	res, err := p.Run(ctx)
	if res == nil {
		return fatal(err)
	}

	fmt.Fprintln(out)
	tui.WriteStatus(out, p.Commands(), nil)
	tui.WriteSummary(out, tui.Summary{
		Source:   path,
		Worst:    res.Worst,
		Commands: len(p.Commands()),
		Executed: res.Executed,
		Halted:   res.Halted,
		Duration: res.Duration,
	})
	if tracePath != "" {
		fmt.Fprintf(out, "  trace: %s\n", tracePath)
	}

	if errors.Is(err, processor.ErrCancelled) {
		return fatal(err)
	}
	ctxlog.FromContext(ctx).Debug("run command done", "path", path, "worst", res.Worst.String())
	return exitForSeverity(res.Worst)
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check [file.gp]",
	Short: "Validate a command file without running it",
	Long: `Run the initialization phase only: parse every line, check command
parameters and pair For/If blocks. Nothing is executed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()
	p := processor.New(processor.WithRegistry(newRegistry()))
	if err := p.LoadFile(path); err != nil {
		return fatal(err)
	}
	worst, err := p.Validate(cmd.Context())
	if err != nil {
		return fatal(err)
	}
	phase := status.PhaseInitialization
	if n := tui.WriteStatus(out, p.Commands(), &phase); n == 0 {
		fmt.Fprintf(out, "%s %s is valid (%d lines)\n", tui.Badge(worst), path, len(p.Commands()))
	} else {
		fmt.Fprintf(out, "%s %s: %d commands need attention\n", tui.Badge(worst), path, n)
	}
	return exitForSeverity(worst)
}

func init() {
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a property (NAME=VALUE), repeatable")
	runCmd.Flags().BoolVar(&runStopOnFailure, "stop-on-failure", false, "Halt at the first failing command")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL execution trace to this file")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print Message output")
}
