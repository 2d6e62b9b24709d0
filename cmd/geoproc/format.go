package main

import (
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/kernel/cmdfile"
)

var (
	formatCanonical bool
	formatOut       string
)

var formatCmd = &cobra.Command{
	Use:   "format [file.gp]",
	Short: "Rewrite a command file",
	Long: `Read a command file and write it back. Unmodified lines are written exactly
as read; with --canonical every command is rewritten as Name(P="v",...)
keeping its indentation. Output goes to stdout unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runFormat,
}

func runFormat(cmd *cobra.Command, args []string) error {
	cmds, err := cmdfile.Read(args[0], newRegistry())
	if err != nil {
		return fatal(err)
	}
	var opts []cmdfile.WriteOption
	if formatCanonical {
		opts = append(opts, cmdfile.Canonical())
	}
	if formatOut != "" {
		if err := cmdfile.Write(formatOut, cmds, opts...); err != nil {
			return fatal(err)
		}
		return nil
	}
	if err := cmdfile.WriteTo(cmd.OutOrStdout(), cmds, opts...); err != nil {
		return fatal(err)
	}
	return nil
}

func init() {
	formatCmd.Flags().BoolVar(&formatCanonical, "canonical", false, "Rewrite commands in canonical form")
	formatCmd.Flags().StringVarP(&formatOut, "out", "o", "", "Write to this file instead of stdout")
}
