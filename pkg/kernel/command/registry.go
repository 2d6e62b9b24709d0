package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Factory constructs a fresh, uninitialized command value.
type Factory func() Command

type entry struct {
	doc     Doc
	factory Factory
}

// Registry maps command names (case-insensitive) to factories. It is built
// at startup and read-only afterwards.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// DefaultRegistry returns a registry holding the control-flow and utility
// commands. Domain packages add their own with Register.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(forDoc, func() Command { return &For{} })
	r.Register(endForDoc, func() Command { return &EndFor{} })
	r.Register(ifDoc, func() Command { return &If{} })
	r.Register(endIfDoc, func() Command { return &EndIf{} })
	r.Register(setPropertyDoc, func() Command { return &SetProperty{} })
	r.Register(messageDoc, func() Command { return &Message{} })
	r.Register(writePropertiesDoc, func() Command { return &WritePropertiesToFile{} })
	return r
}

// Register adds a command. Registering the same name twice panics.
func (r *Registry) Register(doc Doc, f Factory) {
	key := strings.ToLower(doc.Name)
	if _, exists := r.entries[key]; exists {
		panic(fmt.Sprintf("command %q already registered", doc.Name))
	}
	r.entries[key] = entry{doc: doc, factory: f}
}

// New constructs the command registered under name. The bool is false when
// the name is not registered.
func (r *Registry) New(name string) (Command, bool) {
	e, ok := r.entries[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return e.factory(), true
}

// Lookup returns the documentation of a registered command.
func (r *Registry) Lookup(name string) (Doc, bool) {
	e, ok := r.entries[strings.ToLower(name)]
	return e.doc, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.doc.Name)
	}
	sort.Strings(names)
	return names
}

// FromLine parses one line of text and builds the matching command.
// Blank lines and comments become *Blank and *Comment. Unregistered names
// and syntax errors become *Unknown, whose validation always fails; the
// line is never dropped.
func (r *Registry) FromLine(text string) Command {
	p, err := parse.Line(text)
	if err != nil {
		u := &Unknown{ParseErr: err}
		setup(u, p.Name, text, p.Indent, p.Params, nil)
		return u
	}
	switch p.Kind {
	case parse.KindBlank:
		b := &Blank{}
		setup(b, "", text, p.Indent, nil, nil)
		return b
	case parse.KindComment:
		c := &Comment{}
		setup(c, "#", text, p.Indent, nil, nil)
		return c
	}
	c, ok := r.New(p.Name)
	if !ok {
		c = &Unknown{}
	}
	setup(c, p.Name, text, p.Indent, p.Params, p.Duplicates)
	return c
}

// Comment is a '#' line. It is never executed.
type Comment struct{ Base }

// Text returns the line exactly as read.
func (c *Comment) Text() string { return c.text }

func (c *Comment) ParameterNames() []string { return nil }

func (c *Comment) Validate(*parse.Params) []status.Entry { return nil }

func (c *Comment) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) {
	return nil, nil
}

// Directive returns the "#@name value" content of a comment, if any.
func (c *Comment) Directive() (name, value string, ok bool) {
	body := strings.TrimSpace(c.text)
	if !strings.HasPrefix(body, "#@") {
		return "", "", false
	}
	fields := strings.Fields(body[2:])
	if len(fields) == 0 {
		return "", "", false
	}
	return fields[0], strings.Join(fields[1:], " "), true
}

// Blank is an empty line.
type Blank struct{ Base }

// Text returns the line exactly as read.
func (b *Blank) Text() string { return b.text }

func (b *Blank) ParameterNames() []string { return nil }

func (b *Blank) Validate(*parse.Params) []status.Entry { return nil }

func (b *Blank) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) {
	return nil, nil
}

// Unknown stands in for an unrecognized command name or an unparseable line.
type Unknown struct {
	Base
	ParseErr error
}

// Text returns the line exactly as read.
func (u *Unknown) Text() string {
	if u.text != "" {
		return u.text
	}
	return u.Canonical()
}

func (u *Unknown) ParameterNames() []string { return u.Params().Names() }

// Validate always fails.
func (u *Unknown) Validate(*parse.Params) []status.Entry {
	if u.ParseErr != nil {
		return []status.Entry{status.Failuref(status.PhaseInitialization,
			"Correct the command syntax: Name(Param=\"Value\",...).",
			"Unable to parse command %q: %v", strings.TrimSpace(u.text), u.ParseErr)}
	}
	return []status.Entry{status.Failuref(status.PhaseInitialization,
		"Check the command name spelling or the installed command set.",
		"Unrecognized command %q", u.Name())}
}

func (u *Unknown) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) {
	return nil, runFailure("", "unrecognized command %q cannot be run", u.Name())
}
