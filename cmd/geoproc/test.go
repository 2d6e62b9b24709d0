package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/kernel/regression"
)

var (
	testResults  string
	testSummary  string
	testFailFast bool
	testJSON     bool
	testPattern  string
)

var testCmd = &cobra.Command{
	Use:   "test [path...]",
	Short: "Run command files as regression tests",
	Long: `Run each command file in a fresh processor and compare its worst status
with the status declared by an "#@expectedStatus" comment (Success when
absent). Directories are searched recursively for files matching the
configured pattern (default ` + regression.DefaultPattern + `).

Exit codes:
  0: every enabled file passed
  1: at least one file failed
  2: a path could not be read or a report could not be written`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pattern := cfg.Regression.Pattern
	if testPattern != "" {
		pattern = testPattern
	}
	runner := &regression.Runner{
		Registry:   newRegistry(),
		Properties: cfg.PropertyValues(),
		Pattern:    pattern,
		FailFast:   testFailFast || cfg.Regression.FailFast,
		Logger:     ctxlog.FromContext(ctx),
	}
	report, err := runner.Run(ctx, args)
	if report == nil {
		return fatal(err)
	}

	out := cmd.OutOrStdout()
	if testJSON {
		if werr := regression.WriteJSON(out, report); werr != nil {
			return fatal(werr)
		}
	} else if werr := regression.WriteTable(out, report); werr != nil {
		return fatal(werr)
	}

	results := testResults
	if results == "" {
		results = cfg.Regression.ResultsFile
	}
	if results != "" {
		if werr := writeReport(results, report, regression.WriteTable); werr != nil {
			return fatal(werr)
		}
	}
	summary := testSummary
	if summary == "" {
		summary = cfg.Regression.SummaryFile
	}
	if summary != "" {
		if werr := writeReport(summary, report, regression.WriteHTML); werr != nil {
			return fatal(werr)
		}
		if !testJSON {
			fmt.Fprintf(out, "Summary: %s\n", summary)
		}
	}

	if err != nil {
		return fatal(err)
	}
	if !report.OK() {
		return &exitError{code: exitFailure}
	}
	return nil
}

func writeReport(path string, r *regression.Report, write func(w io.Writer, r *regression.Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func init() {
	testCmd.Flags().StringVar(&testResults, "results", "", "Also write the results table to this file")
	testCmd.Flags().StringVar(&testSummary, "summary", "", "Write an HTML diagnostic summary to this file")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after the first failing file")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Print results as JSON instead of a table")
	testCmd.Flags().StringVar(&testPattern, "pattern", "", "File pattern used inside directories")
}
