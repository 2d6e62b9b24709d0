package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/config"
	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
	"github.com/ormasoftchile/geoproc/pkg/kernel/regression"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Handlers implements the geoproc MCP tools.
type Handlers struct {
	// Registry builds commands; nil uses command.DefaultRegistry.
	Registry *command.Registry
}

func (h *Handlers) registry() *command.Registry {
	if h.Registry == nil {
		return command.DefaultRegistry()
	}
	return h.Registry
}

// HandleValidate implements the geoproc/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	p := processor.New(processor.WithRegistry(h.registry()))
	if err := p.LoadFile(path); err != nil {
		return errorResult(err.Error()), nil
	}
	worst, err := p.Validate(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	phase := status.PhaseInitialization
	diags := diagnostics(p.Commands(), &phase)
	if len(diags) == 0 {
		return textResult(fmt.Sprintf("✓ %s is valid (%d lines)", path, len(p.Commands()))), nil
	}
	return jsonResult(map[string]any{
		"path":        path,
		"worst":       worst,
		"diagnostics": diags,
	}, worst == status.Failure), nil
}

// HandleRun implements the geoproc/run MCP tool.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	values := make(map[string]any)
	if raw, ok := req.GetArguments()["properties"].(map[string]any); ok {
		for k, v := range raw {
			values[k] = fmt.Sprint(v)
		}
	}

	var out bytes.Buffer
	p := processor.New(
		processor.WithRegistry(h.registry()),
		processor.WithOutput(&out),
		processor.WithProperties(values),
		processor.WithStopOnFailure(req.GetBool("stop_on_failure", false)),
	)
	if err := p.LoadFile(path); err != nil {
		return errorResult(err.Error()), nil
	}
	res, err := p.Run(ctx)
	if res == nil {
		return errorResult(err.Error()), nil
	}

	response := map[string]any{
		"run_id":   res.RunID,
		"state":    res.State.String(),
		"worst":    res.Worst,
		"executed": res.Executed,
		"halted":   res.Halted,
		"duration": res.Duration.String(),
	}
	if diags := diagnostics(p.Commands(), nil); len(diags) > 0 {
		response["diagnostics"] = diags
	}
	if err != nil {
		response["error"] = err.Error()
	}
	if out.Len() > 0 {
		response["output"] = out.String()
	}
	return jsonResult(response, res.Worst == status.Failure || err != nil), nil
}

// HandleTest implements the geoproc/test MCP tool.
func (h *Handlers) HandleTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	runner := &regression.Runner{
		Registry: h.registry(),
		Pattern:  req.GetString("pattern", ""),
	}
	report, err := runner.Run(ctx, []string{path})
	if report == nil {
		return errorResult(fmt.Sprintf("run tests: %s", err)), nil
	}
	var buf bytes.Buffer
	if err := regression.WriteJSON(&buf, report); err != nil {
		return errorResult(err.Error()), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(buf.String())},
		IsError: !report.OK(),
	}, nil
}

// HandleDescribe implements the geoproc/describe MCP tool.
func (h *Handlers) HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := h.registry()
	name := req.GetString("command", "")
	if name == "" {
		return textResult(reg.Markdown()), nil
	}
	doc, ok := reg.Lookup(name)
	if !ok {
		return errorResult(fmt.Sprintf("unknown command %q", name)), nil
	}
	return textResult(doc.Markdown()), nil
}

// HandleSchema implements the geoproc/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := config.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// diagnostics flattens command status entries. A nil phase keeps entries of
// every phase.
func diagnostics(cmds []command.Command, phase *status.Phase) []regression.Diagnostic {
	var out []regression.Diagnostic
	for i, c := range cmds {
		entries := c.Status().Entries()
		if phase != nil {
			entries = c.Status().EntriesFor(*phase)
		}
		for _, e := range entries {
			out = append(out, regression.Diagnostic{Line: i + 1, Command: c.Name(), Entry: e})
		}
	}
	return out
}

func jsonResult(v any, isErr bool) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
