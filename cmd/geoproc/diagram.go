package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/diagram"
	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
)

// --- diagram ---

var (
	diagramFormat string
	diagramOut    string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [file.gp]",
	Short: "Draw the block structure of a command file",
	Long: `Validate a command file and draw its For and If blocks as an ASCII outline
or a Mermaid flowchart. Commands that fail validation are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	format := diagram.Format(diagramFormat)
	if format != diagram.FormatASCII && format != diagram.FormatMermaid {
		return fatal(fmt.Errorf("unsupported --format %q: want ascii or mermaid", diagramFormat))
	}
	p := processor.New(processor.WithRegistry(newRegistry()))
	if err := p.LoadFile(args[0]); err != nil {
		return fatal(err)
	}
	if _, err := p.Validate(cmd.Context()); err != nil {
		return fatal(err)
	}
	out, err := diagram.Generate(p.Commands(), filepath.Base(args[0]), format)
	if err != nil {
		return fatal(err)
	}
	if diagramOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}
	if err := os.WriteFile(diagramOut, []byte(out), 0o644); err != nil {
		return fatal(fmt.Errorf("write diagram: %w", err))
	}
	return nil
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", string(diagram.FormatASCII), "Output format: ascii or mermaid")
	diagramCmd.Flags().StringVarP(&diagramOut, "out", "o", "", "Write the diagram to this file instead of stdout")
}
