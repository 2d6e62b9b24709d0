package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/kernel/trace"
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace file operations",
}

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Verify trace file integrity (hash chain)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceVerify,
}

func runTraceVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	result, err := trace.VerifyFile(args[0])
	if err != nil {
		return fatal(err)
	}

	if !result.Valid {
		fmt.Fprintf(out, "✗ Chain broken at event %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Fprintf(out, "  %s\n", result.Error)
		}
		return &exitError{code: exitFailure, err: fmt.Errorf("chain verification failed")}
	}

	fmt.Fprintf(out, "✓ Chain integrity: %d events, no breaks\n", result.EventCount)
	if !result.Complete {
		fmt.Fprintf(out, "⚠ No run_complete event: the run did not finish\n")
	}
	return nil
}

func init() {
	traceCmd.AddCommand(traceVerifyCmd)
}
