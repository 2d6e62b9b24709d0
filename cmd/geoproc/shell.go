package main

import (
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
	"github.com/ormasoftchile/geoproc/pkg/kernel/shell"
)

var shellVars []string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run commands interactively, one line at a time",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	values, err := parseVars(cfg.PropertyValues(), shellVars)
	if err != nil {
		return fatal(err)
	}
	p := processor.New(
		processor.WithRegistry(newRegistry()),
		processor.WithOutput(cmd.OutOrStdout()),
		processor.WithProperties(values),
	)
	return shell.New(p, cmd.OutOrStdout()).Run(cmd.Context())
}

func init() {
	shellCmd.Flags().StringArrayVar(&shellVars, "var", nil, "Set a property (NAME=VALUE), repeatable")
}
