package command

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/props"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

var setPropertyDoc = Doc{
	Name:    "SetProperty",
	Summary: "Set a processor property, optionally converting the value to a typed value.",
	Params: []ParamDoc{
		{Name: "PropertyName", Required: true, Description: "Property to set."},
		{Name: "PropertyType", Description: "Value type.", Default: props.TypeString, Choices: props.Types},
		{Name: "PropertyValue", Description: "Value as text; may be empty."},
	},
}

// SetProperty sets a property in the processor store.
type SetProperty struct{ Base }

func (c *SetProperty) ParameterNames() []string { return setPropertyDoc.ParamNames() }

func (c *SetProperty) Validate(params *parse.Params) []status.Entry {
	entries := setPropertyDoc.Check(params)
	typ := params.Value("PropertyType")
	value := params.Value("PropertyValue")
	if strings.Contains(value, "${") || strings.Contains(typ, "${") || !matchChoice(append([]string{""}, props.Types...), typ) {
		return entries
	}
	if _, err := props.ParseTyped(typ, value); err != nil {
		entries = append(entries, status.Failuref(status.PhaseInitialization,
			"Specify a value matching PropertyType.", "SetProperty: %v", err))
	}
	return entries
}

func (c *SetProperty) Execute(_ context.Context, env Env, params *parse.Params) ([]status.Entry, error) {
	v, err := props.ParseTyped(params.Value("PropertyType"), params.Value("PropertyValue"))
	if err != nil {
		return nil, runFailure("Specify a value matching PropertyType.", "SetProperty: %v", err)
	}
	env.Properties().Set(params.Value("PropertyName"), v)
	return nil, nil
}

var messageDoc = Doc{
	Name:    "Message",
	Summary: "Print a message and optionally record it as a Warning or Failure.",
	Params: []ParamDoc{
		{Name: "Text", Required: true, Description: "Message text; ${Property} references are expanded."},
		{Name: "CommandStatus", Description: "Status to record.", Default: "Success", Choices: []string{"Success", "Warning", "Failure"}},
	},
}

// Message prints text and records it at the requested severity.
type Message struct {
	Base
	resolved string
}

func (c *Message) ParameterNames() []string { return messageDoc.ParamNames() }

func (c *Message) Validate(params *parse.Params) []status.Entry { return messageDoc.Check(params) }

func (c *Message) Execute(_ context.Context, env Env, params *parse.Params) ([]status.Entry, error) {
	c.resolved = params.Value("Text")
	sev, err := status.ParseSeverity(messageDoc.ValueOr(params, "CommandStatus"))
	if err != nil {
		return nil, runFailure("Use Success, Warning or Failure.", "Message: %v", err)
	}
	fmt.Fprintln(env.Output(), c.resolved)
	if sev == status.Success {
		return nil, nil
	}
	return []status.Entry{{Phase: status.PhaseRun, Severity: sev, Message: c.resolved}}, nil
}

// ResolvedText returns the text printed by the most recent run.
func (c *Message) ResolvedText() string { return c.resolved }

var writePropertiesDoc = Doc{
	Name:    "WritePropertiesToFile",
	Summary: "Write processor properties to a file as Name=Value lines or YAML.",
	Params: []ParamDoc{
		{Name: "OutputFile", Required: true, Description: "File to write; relative paths use the WorkingDir property."},
		{Name: "IncludeProperties", Description: "Comma-separated names or glob patterns.", Default: "*"},
		{Name: "WriteMode", Description: "Overwrite or append.", Default: "Overwrite", Choices: []string{"Overwrite", "Append"}},
		{Name: "FileFormat", Description: "Output format.", Default: "NameValue", Choices: []string{"NameValue", "YAML"}},
	},
}

// WritePropertiesToFile dumps properties for inspection and regression comparison.
type WritePropertiesToFile struct{ Base }

func (c *WritePropertiesToFile) ParameterNames() []string { return writePropertiesDoc.ParamNames() }

func (c *WritePropertiesToFile) Validate(params *parse.Params) []status.Entry {
	return writePropertiesDoc.Check(params)
}

func (c *WritePropertiesToFile) Execute(_ context.Context, env Env, params *parse.Params) ([]status.Entry, error) {
	patterns := SplitList(writePropertiesDoc.ValueOr(params, "IncludeProperties"))
	store := env.Properties()
	var names []string
	for _, n := range store.Names() {
		for _, pat := range patterns {
			if ok, _ := path.Match(pat, n); ok {
				names = append(names, n)
				break
			}
		}
	}

	var data []byte
	if strings.EqualFold(writePropertiesDoc.ValueOr(params, "FileFormat"), "YAML") {
		out := make(map[string]string, len(names))
		for _, n := range names {
			v, _ := store.Get(n)
			out[n] = props.Format(v)
		}
		b, err := yaml.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal properties: %w", err)
		}
		data = b
	} else {
		var b strings.Builder
		for _, n := range names {
			v, _ := store.Get(n)
			fmt.Fprintf(&b, "%s=%s\n", n, quoteIfNeeded(props.Format(v)))
		}
		data = []byte(b.String())
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if strings.EqualFold(params.Value("WriteMode"), "Append") {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file := ResolvePath(env, params.Value("OutputFile"))
	f, err := os.OpenFile(file, flags, 0o644)
	if err != nil {
		return nil, runFailure("Check that the output folder exists and is writable.", "WritePropertiesToFile: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return nil, runFailure("", "WritePropertiesToFile: %v", err)
	}
	return nil, nil
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t\"=") {
		return parse.Quote(s)
	}
	return s
}
