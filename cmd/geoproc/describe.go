package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/kernel/config"
	"github.com/ormasoftchile/geoproc/pkg/tui"
)

// --- describe ---

var (
	describeRaw   bool
	describeWidth int
)

var describeCmd = &cobra.Command{
	Use:   "describe [command]",
	Short: "Show command documentation",
	Long:  "List every command, or show the parameters of one command.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	reg := newRegistry()
	md := reg.Markdown()
	if len(args) == 1 {
		doc, ok := reg.Lookup(args[0])
		if !ok {
			return fatal(fmt.Errorf("unknown command %q; run 'geoproc describe' for the list", args[0]))
		}
		md = doc.Markdown()
	}
	if describeRaw {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderMarkdown(md, describeWidth))
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of " + config.DefaultFile,
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := config.GenerateJSONSchema()
	if err != nil {
		return fatal(fmt.Errorf("generate schema: %w", err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func init() {
	describeCmd.Flags().BoolVar(&describeRaw, "raw", false, "Print Markdown without terminal styling")
	describeCmd.Flags().IntVar(&describeWidth, "width", 100, "Wrap rendered text at this column")
}
