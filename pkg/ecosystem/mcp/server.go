// Package mcp exposes geoproc to AI agents as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
)

// NewServer creates an MCP server with the geoproc tools registered. The
// tools build commands from reg.
func NewServer(version string, reg *command.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"geoproc",
		version,
		server.WithToolCapabilities(true),
	)
	h := &Handlers{Registry: reg}

	s.AddTool(
		mcp.NewTool("geoproc/validate",
			mcp.WithDescription("Validate a geoproc command file without running it"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the command file")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("geoproc/run",
			mcp.WithDescription("Run a geoproc command file and report every command's status"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the command file")),
			mcp.WithObject("properties", mcp.Description("Initial properties, name to value")),
			mcp.WithBoolean("stop_on_failure", mcp.Description("Halt at the first failing command")),
		),
		h.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("geoproc/test",
			mcp.WithDescription("Run command files as regression tests against their #@expectedStatus"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Command file or directory of test files")),
			mcp.WithString("pattern", mcp.Description("File pattern used inside directories (default test-*.gp)")),
		),
		h.HandleTest,
	)

	s.AddTool(
		mcp.NewTool("geoproc/describe",
			mcp.WithDescription("Describe geoproc commands as Markdown"),
			mcp.WithString("command", mcp.Description("Command name; omit to list every command")),
		),
		h.HandleDescribe,
	)

	s.AddTool(
		mcp.NewTool("geoproc/schema",
			mcp.WithDescription("Export the JSON Schema of geoproc.yaml"),
		),
		h.HandleSchema,
	)

	return s
}
