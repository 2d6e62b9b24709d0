package command

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/props"
	"github.com/ormasoftchile/geoproc/pkg/kernel/resource"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

type testEnv struct {
	props *props.Store
	res   *resource.Registry
	out   bytes.Buffer
}

func newTestEnv() *testEnv {
	return &testEnv{props: props.NewStore(nil), res: resource.NewRegistry()}
}

func (e *testEnv) Properties() *props.Store      { return e.props }
func (e *testEnv) Resources() *resource.Registry { return e.res }
func (e *testEnv) Output() io.Writer             { return &e.out }

func TestFromLine_Kinds(t *testing.T) {
	reg := DefaultRegistry()
	tests := []struct {
		line string
		want Kind
		name string
	}{
		{`SetProperty(PropertyName="X",PropertyValue="5")`, KindOperation, "SetProperty"},
		{`setproperty(PropertyName="X")`, KindOperation, "setproperty"},
		{`# note`, KindComment, "#"},
		{``, KindBlank, ""},
		{`For(Name="loop",List="1,2")`, KindBlockStart, "For"},
		{`  EndFor(Name="loop")`, KindBlockEnd, "EndFor"},
		{`Unrecognized(Foo="Bar")`, KindUnknown, "Unrecognized"},
		{`Message(Text="unterminated)`, KindUnknown, "Message"},
	}
	for _, tt := range tests {
		c := reg.FromLine(tt.line)
		if got := KindOf(c); got != tt.want {
			t.Errorf("KindOf(%q) = %s, want %s", tt.line, got, tt.want)
		}
		if c.Name() != tt.name {
			t.Errorf("Name(%q) = %q, want %q", tt.line, c.Name(), tt.name)
		}
		if c.Text() != tt.line {
			t.Errorf("Text(%q) = %q, original line must be kept", tt.line, c.Text())
		}
	}
}

func TestUnknown_ValidationNamesCommand(t *testing.T) {
	c := DefaultRegistry().FromLine(`Unrecognized(Foo="Bar")`)
	entries := c.Validate(c.Params())
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Severity != status.Failure || e.Phase != status.PhaseInitialization {
		t.Errorf("entry = %+v", e)
	}
	if !strings.Contains(e.Message, "Unrecognized") {
		t.Errorf("message %q does not name the command", e.Message)
	}
}

func TestUnknown_ParseErrorPlaceholder(t *testing.T) {
	c := DefaultRegistry().FromLine(`Message(Text="oops`)
	u, ok := c.(*Unknown)
	if !ok {
		t.Fatalf("got %T, want *Unknown", c)
	}
	if u.ParseErr == nil {
		t.Fatal("expected parse error to be kept")
	}
	entries := u.Validate(u.Params())
	if len(entries) != 1 || !strings.Contains(entries[0].Message, "Unable to parse") {
		t.Errorf("entries = %+v", entries)
	}
}

func TestDocCheck(t *testing.T) {
	tests := []struct {
		line string
		want []status.Severity
	}{
		{`Message(Text="hi")`, nil},
		{`Message()`, []status.Severity{status.Failure}},
		{`Message(Text="")`, []status.Severity{status.Failure}},
		{`Message(Text="hi",Colour="red")`, []status.Severity{status.Warning}},
		{`Message(Text="hi",CommandStatus="Fatal")`, []status.Severity{status.Failure}},
		{`Message(Text="hi",CommandStatus="${S}")`, nil},
		{`Message(Text="hi",OnFailure="Halt")`, nil},
		{`Message(Text="hi",OnFailure="Explode")`, []status.Severity{status.Failure}},
	}
	reg := DefaultRegistry()
	for _, tt := range tests {
		c := reg.FromLine(tt.line)
		var got []status.Severity
		for _, e := range c.Validate(c.Params()) {
			got = append(got, e.Severity)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Validate(%s) severities mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func TestBase_TextAfterEdit(t *testing.T) {
	c := DefaultRegistry().FromLine(`  Message( Text = "a" )`)
	m := c.(*Message)
	if m.Text() != `  Message( Text = "a" )` {
		t.Errorf("unedited Text = %q", m.Text())
	}
	m.SetParam("Text", "b")
	if m.Text() != `  Message(Text="b")` {
		t.Errorf("edited Text = %q", m.Text())
	}
	if m.Name() != "Message" {
		t.Errorf("Name changed to %q", m.Name())
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg := DefaultRegistry()
	reg.Register(Doc{Name: "message"}, func() Command { return &Message{} })
}

func TestRegistry_Names(t *testing.T) {
	want := []string{"EndFor", "EndIf", "For", "If", "Message", "SetProperty", "WritePropertiesToFile"}
	if diff := cmp.Diff(want, DefaultRegistry().Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestSetProperty(t *testing.T) {
	env := newTestEnv()
	c := DefaultRegistry().FromLine(`SetProperty(PropertyName="Count",PropertyType="Integer",PropertyValue="7")`)
	if entries := c.Validate(c.Params()); len(entries) != 0 {
		t.Fatalf("unexpected validation entries: %v", entries)
	}
	if _, err := c.Execute(context.Background(), env, c.Params()); err != nil {
		t.Fatal(err)
	}
	if v, _ := env.props.Get("Count"); v != 7 {
		t.Errorf("Count = %#v, want 7", v)
	}

	bad := DefaultRegistry().FromLine(`SetProperty(PropertyName="Count",PropertyType="Integer",PropertyValue="seven")`)
	if entries := bad.Validate(bad.Params()); len(entries) != 1 || entries[0].Severity != status.Failure {
		t.Errorf("expected one Failure, got %v", entries)
	}
}

func TestMessage_Execute(t *testing.T) {
	env := newTestEnv()
	c := DefaultRegistry().FromLine(`Message(Text="careful",CommandStatus="Warning")`)
	entries, err := c.Execute(context.Background(), env, parse.NewParams("Text", "careful now", "CommandStatus", "Warning"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Severity != status.Warning || entries[0].Phase != status.PhaseRun {
		t.Errorf("entries = %+v", entries)
	}
	if got := c.(*Message).ResolvedText(); got != "careful now" {
		t.Errorf("ResolvedText = %q", got)
	}
	if env.out.String() != "careful now\n" {
		t.Errorf("output = %q", env.out.String())
	}
}

func TestWritePropertiesToFile(t *testing.T) {
	dir := t.TempDir()
	env := newTestEnv()
	env.props.Set(PropertyWorkingDir, dir)
	env.props.Set("LayerName", "roads")
	env.props.Set("LayerCount", 3)
	env.props.Set("Other", "x y")

	c := DefaultRegistry().FromLine(`WritePropertiesToFile(OutputFile="props.txt",IncludeProperties="Layer*,Other")`)
	if _, err := c.Execute(context.Background(), env, c.Params()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "props.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "LayerCount=3\nLayerName=roads\nOther=\"x y\"\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}

	y := DefaultRegistry().FromLine(`WritePropertiesToFile(OutputFile="props.yaml",IncludeProperties="LayerName",FileFormat="YAML")`)
	if _, err := y.Execute(context.Background(), env, y.Params()); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "props.yaml"))
	if string(data) != "LayerName: roads\n" {
		t.Errorf("yaml = %q", data)
	}
}

func TestFor_Items(t *testing.T) {
	env := newTestEnv()
	env.props.Set("Layers", []string{"a", "b"})
	env.props.Set("CSV", "x, y")
	f := &For{}
	tests := []struct {
		params *parse.Params
		want   []any
	}{
		{parse.NewParams("Name", "l", "List", "1,2,3"), []any{"1", "2", "3"}},
		{parse.NewParams("Name", "l", "ListProperty", "Layers"), []any{"a", "b"}},
		{parse.NewParams("Name", "l", "ListProperty", "CSV"), []any{"x", "y"}},
		{parse.NewParams("Name", "l", "SequenceStart", "1", "SequenceEnd", "3"), []any{1, 2, 3}},
		{parse.NewParams("Name", "l", "SequenceStart", "3", "SequenceEnd", "1", "SequenceIncrement", "-1"), []any{3, 2, 1}},
		{parse.NewParams("Name", "l", "SequenceStart", "0", "SequenceEnd", "1", "SequenceIncrement", "0.5"), []any{0.0, 0.5, 1.0}},
		{parse.NewParams("Name", "l", "SequenceStart", "5", "SequenceEnd", "1"), nil},
	}
	for _, tt := range tests {
		got, err := f.Items(env, tt.params)
		if err != nil {
			t.Errorf("Items(%v) error: %v", tt.params.Map(), err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Items(%v) mismatch (-want +got):\n%s", tt.params.Map(), diff)
		}
	}

	if _, err := f.Items(env, parse.NewParams("Name", "l", "ListProperty", "Missing")); err == nil {
		t.Error("expected error for missing list property")
	}
}

func TestFor_Validate(t *testing.T) {
	reg := DefaultRegistry()
	for _, line := range []string{
		`For(Name="l")`,
		`For(Name="l",List="1",SequenceStart="1",SequenceEnd="2")`,
		`For(Name="l",SequenceStart="a",SequenceEnd="2")`,
		`For(Name="l",SequenceStart="1")`,
	} {
		c := reg.FromLine(line)
		if sev := worst(c.Validate(c.Params())); sev != status.Failure {
			t.Errorf("Validate(%s) = %s, want Failure", line, sev)
		}
	}
	ok := reg.FromLine(`For(Name="l",IteratorProperty="i",SequenceStart="${Start}",SequenceEnd="10")`)
	if sev := worst(ok.Validate(ok.Params())); sev != status.Success {
		t.Errorf("Validate = %s, want Success", sev)
	}
	if got := ok.(*For).IteratorName(ok.Params()); got != "i" {
		t.Errorf("IteratorName = %q", got)
	}
}

func TestIf_Evaluate(t *testing.T) {
	c := DefaultRegistry().FromLine(`If(Name="check",Condition="${Flag} == true")`).(*If)
	store := props.NewStore(map[string]any{"Flag": true})
	if got, err := c.Evaluate(store.Expand); err != nil || !got {
		t.Errorf("Evaluate = %v, %v", got, err)
	}
	if got, err := c.Evaluate(props.NewStore(nil).Expand); err == nil || got {
		t.Errorf("unresolved condition: got %v, err %v", got, err)
	}
}

func TestComment_Directive(t *testing.T) {
	c := DefaultRegistry().FromLine(`#@expectedStatus  Warning`).(*Comment)
	name, value, ok := c.Directive()
	if !ok || name != "expectedStatus" || value != "Warning" {
		t.Errorf("Directive = %q %q %v", name, value, ok)
	}
	plain := DefaultRegistry().FromLine(`# @not a directive`).(*Comment)
	if _, _, ok := plain.Directive(); ok {
		t.Error("plain comment parsed as directive")
	}
}

func TestDocMarkdown(t *testing.T) {
	doc, ok := DefaultRegistry().Lookup("message")
	if !ok {
		t.Fatal("Message not registered")
	}
	md := doc.Markdown()
	for _, want := range []string{"## Message", "`Text`", "One of: Success, Warning, Failure."} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func worst(entries []status.Entry) status.Severity {
	var l status.Log
	l.Add(entries...)
	return l.Worst()
}
