package command

import (
	"fmt"
	"strings"
)

// Markdown renders a command's documentation as a Markdown section.
func (d Doc) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n%s\n\n", d.Name, d.Summary)
	fmt.Fprintf(&b, "```\n%s\n```\n\n", d.Usage())
	if len(d.Params) == 0 {
		b.WriteString("No parameters.\n")
		return b.String()
	}
	b.WriteString("| Parameter | Required | Default | Description |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, p := range d.Params {
		req := ""
		if p.Required {
			req = "yes"
		}
		desc := p.Description
		if len(p.Choices) > 0 {
			desc += " One of: " + strings.Join(p.Choices, ", ") + "."
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", p.Name, req, p.Default, strings.ReplaceAll(desc, "|", `\|`))
	}
	return b.String()
}

// Usage returns a template line with every documented parameter.
func (d Doc) Usage() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		parts[i] = p.Name + `="..."`
	}
	return d.Name + "(" + strings.Join(parts, ",") + ")"
}

// Markdown renders documentation for every registered command.
func (r *Registry) Markdown() string {
	var b strings.Builder
	b.WriteString("# Commands\n\n")
	for _, n := range r.Names() {
		doc, _ := r.Lookup(n)
		fmt.Fprintf(&b, "- **%s**: %s\n", doc.Name, doc.Summary)
	}
	fmt.Fprintf(&b, "\nEvery command also accepts `%s=\"Halt\"` to stop the workflow when it fails.\n", ParamOnFailure)
	return b.String()
}
