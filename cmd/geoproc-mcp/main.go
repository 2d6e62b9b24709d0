// Package main provides the geoproc-mcp binary, an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/geoproc/pkg/commands/geo"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	gmcp "github.com/ormasoftchile/geoproc/pkg/ecosystem/mcp"
)

var version = "dev"

func main() {
	reg := command.DefaultRegistry()
	geo.Register(reg)
	s := gmcp.NewServer(version, reg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
