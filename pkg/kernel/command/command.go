// Package command defines the command contract, the registry that maps
// command names to constructors, and the built-in control-flow and utility
// commands. Domain operations live in their own packages and register
// themselves with a Registry.
package command

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/props"
	"github.com/ormasoftchile/geoproc/pkg/kernel/resource"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// ParamOnFailure is accepted by every command. "Halt" stops the workflow
// when the command fails during the run phase; "Continue" is the default.
const ParamOnFailure = "OnFailure"

// PropertyWorkingDir holds the directory relative paths are resolved against.
const PropertyWorkingDir = "WorkingDir"

// Env is the processor state a command may read and mutate while it runs.
type Env interface {
	Properties() *props.Store
	Resources() *resource.Registry
	Output() io.Writer
}

// Command is one parsed line of a command file.
//
// Validate runs once in the initialization phase against the raw parameter
// strings and must not perform I/O. Execute runs in the run phase, possibly
// several times inside a loop, with a copy of the parameters in which every
// ${Property} reference has been expanded. A returned error is recorded as a
// run-phase Failure by the processor.
type Command interface {
	Name() string
	Text() string
	Params() *parse.Params
	Status() *status.Log
	ParameterNames() []string
	Validate(params *parse.Params) []status.Entry
	Execute(ctx context.Context, env Env, params *parse.Params) ([]status.Entry, error)
}

// Kind classifies a command for the processor and for reports.
type Kind int

const (
	KindOperation Kind = iota
	KindComment
	KindBlank
	KindUnknown
	KindBlockStart
	KindBlockEnd
)

func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "Operation"
	case KindComment:
		return "Comment"
	case KindBlank:
		return "BlankLine"
	case KindUnknown:
		return "UnknownCommand"
	case KindBlockStart:
		return "ControlFlowStart"
	case KindBlockEnd:
		return "ControlFlowEnd"
	default:
		return "Kind(?)"
	}
}

// KindOf classifies c.
func KindOf(c Command) Kind {
	switch v := c.(type) {
	case *Comment:
		return KindComment
	case *Blank:
		return KindBlank
	case *Unknown:
		return KindUnknown
	case Block:
		if v.Opens() {
			return KindBlockStart
		}
		return KindBlockEnd
	default:
		return KindOperation
	}
}

// Base carries the state shared by every command. Concrete commands embed it.
type Base struct {
	name       string
	text       string
	indent     string
	params     *parse.Params
	duplicates []string
	edited     bool
	status     status.Log
}

type initializer interface {
	base() *Base
}

func (b *Base) base() *Base { return b }

// Init sets the identity of a command built outside FromLine. The name is
// fixed from then on.
func Init(c Command, name string, params *parse.Params) Command {
	setup(c, name, "", "", params, nil)
	return c
}

func setup(c Command, name, text, indent string, params *parse.Params, dups []string) {
	ib, ok := c.(initializer)
	if !ok {
		return
	}
	b := ib.base()
	if params == nil {
		params = &parse.Params{}
	}
	b.name, b.text, b.indent, b.params, b.duplicates = name, text, indent, params, dups
}

// Name returns the command name as written in the file.
func (b *Base) Name() string { return b.name }

// Params returns the raw, unexpanded parameters.
func (b *Base) Params() *parse.Params {
	if b.params == nil {
		b.params = &parse.Params{}
	}
	return b.params
}

// SetParam changes a raw parameter value. The command is then written in
// canonical form.
func (b *Base) SetParam(name, value string) {
	b.Params().Set(name, value)
	b.edited = true
}

// Status returns the command's diagnostic log.
func (b *Base) Status() *status.Log { return &b.status }

// Indent returns the leading whitespace of the original line.
func (b *Base) Indent() string { return b.indent }

// Duplicates returns parameter names that appeared more than once.
func (b *Base) Duplicates() []string { return b.duplicates }

// Text returns the original line when the command is unchanged, otherwise
// the canonical form with the original indentation.
func (b *Base) Text() string {
	if b.text != "" && !b.edited {
		return b.text
	}
	return b.Canonical()
}

// Canonical returns Name(P1="v1",...) prefixed with the original indentation.
func (b *Base) Canonical() string {
	return b.indent + parse.Format(b.name, b.Params())
}

// Doc describes a command for editors, validation and generated help.
type Doc struct {
	Name    string
	Summary string
	Params  []ParamDoc
}

// ParamDoc describes one parameter.
type ParamDoc struct {
	Name        string
	Description string
	Required    bool
	Default     string
	Choices     []string
}

// ParamNames returns the documented parameter names in order.
func (d Doc) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}

// Check validates params against the doc: required parameters must be
// present and non-empty, values must be among Choices when those are given
// (values containing ${...} are checked at run time instead), and unknown
// parameter names produce a Warning.
func (d Doc) Check(params *parse.Params) []status.Entry {
	var entries []status.Entry
	for _, pd := range d.Params {
		v, ok := params.Get(pd.Name)
		if pd.Required && (!ok || strings.TrimSpace(v) == "") {
			entries = append(entries, status.Failuref(status.PhaseInitialization,
				"Specify the "+pd.Name+" parameter.",
				"%s: parameter %s is required", d.Name, pd.Name))
			continue
		}
		if ok && v != "" && len(pd.Choices) > 0 && !strings.Contains(v, "${") && !matchChoice(pd.Choices, v) {
			entries = append(entries, status.Failuref(status.PhaseInitialization,
				"Use one of: "+strings.Join(pd.Choices, ", ")+".",
				"%s: invalid %s value %q", d.Name, pd.Name, v))
		}
	}
	for _, n := range params.Names() {
		if n == ParamOnFailure {
			if v := params.Value(n); !matchChoice([]string{"Continue", "Halt"}, v) && !strings.Contains(v, "${") {
				entries = append(entries, status.Failuref(status.PhaseInitialization,
					"Use OnFailure=\"Continue\" or OnFailure=\"Halt\".",
					"%s: invalid %s value %q", d.Name, ParamOnFailure, v))
			}
			continue
		}
		if !slices.ContainsFunc(d.Params, func(p ParamDoc) bool { return p.Name == n }) {
			entries = append(entries, status.Warningf(status.PhaseInitialization,
				"Remove the parameter or check its spelling (names are case-sensitive).",
				"%s: unknown parameter %s", d.Name, n))
		}
	}
	return entries
}

// ValueOr returns the parameter value, or the documented default when absent or empty.
func (d Doc) ValueOr(params *parse.Params, name string) string {
	if v := params.Value(name); v != "" {
		return v
	}
	for _, p := range d.Params {
		if p.Name == name {
			return p.Default
		}
	}
	return ""
}

func matchChoice(choices []string, v string) bool {
	return slices.ContainsFunc(choices, func(c string) bool { return strings.EqualFold(c, v) })
}

// HaltsOnFailure reports whether params carry OnFailure="Halt". Pass the
// expanded parameters so that OnFailure="${Mode}" is honored.
func HaltsOnFailure(params *parse.Params) bool {
	if params == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(params.Value(ParamOnFailure)), "Halt")
}

// ResolvePath makes path absolute using the WorkingDir property when it is
// relative.
func ResolvePath(env Env, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if wd, ok := env.Properties().Get(PropertyWorkingDir); ok {
		if dir := props.Format(wd); dir != "" {
			return filepath.Join(dir, path)
		}
	}
	return path
}

// SplitList splits a comma-separated parameter value, trimming blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// runFailure is a helper for Execute implementations.
func runFailure(rec, format string, args ...any) error {
	return &Error{Msg: fmt.Sprintf(format, args...), Recommendation: rec}
}

// Error is a run-phase failure carrying a recommendation for the user.
type Error struct {
	Msg            string
	Recommendation string
}

func (e *Error) Error() string { return e.Msg }

// Errorf builds an *Error for domain packages.
func Errorf(rec, format string, args ...any) error {
	return runFailure(rec, format, args...)
}
