package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/governance"
	"github.com/ormasoftchile/geoproc/pkg/kernel/config"
	"github.com/ormasoftchile/geoproc/pkg/kernel/trace"
)

// testCommand returns a command whose output is captured, and resets the
// package-level flag variables for the duration of the test.
func testCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cfg = config.Default()
	runVars, runStopOnFailure, runTrace, runQuiet = nil, false, "", false
	formatCanonical, formatOut = false, ""
	testResults, testSummary, testFailFast, testJSON, testPattern = "", "", false, false, ""
	describeRaw, describeWidth = false, 100
	diagramFormat, diagramOut = "ascii", ""
	t.Cleanup(func() { cfg = config.Default() })

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(ctxlog.WithLogger(context.Background(), ctxlog.Discard()))
	return cmd, &buf
}

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func codeOf(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestParseVars(t *testing.T) {
	got, err := parseVars(map[string]any{"A": "1", "B": "2"}, []string{"B=3", "C = x=y"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"A": "1", "B": "3", "C": " x=y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseVars mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars(nil, []string{bad}); err == nil {
			t.Errorf("parseVars(%q) should fail", bad)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"failure", &exitError{code: exitFailure}, exitFailure},
		{"fatal", fatal(errors.New("boom")), exitFatal},
		{"cobra error", errors.New("unknown flag: --nope"), exitFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRun_Success(t *testing.T) {
	cmd, buf := testCommand(t)
	path := writeFile(t, t.TempDir(), "hello.gp", "Message(Text=\"hello ${Name}\")\n")
	runVars = []string{"Name=world"}
	if err := runRun(cmd, []string{path}); err != nil {
		t.Fatalf("runRun: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "hello world\n") || !strings.Contains(out, "1 commands, 1 executed") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_Quiet(t *testing.T) {
	cmd, buf := testCommand(t)
	path := writeFile(t, t.TempDir(), "hello.gp", "Message(Text=\"hello\")\n")
	runQuiet = true
	if err := runRun(cmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "hello\n") {
		t.Errorf("quiet run printed Message output: %q", buf.String())
	}
}

func TestRun_FailureExitCode(t *testing.T) {
	cmd, buf := testCommand(t)
	path := writeFile(t, t.TempDir(), "bad.gp", "Nope(A=\"1\")\nMessage(Text=\"after\")\n")
	err := runRun(cmd, []string{path})
	if codeOf(err) != exitFailure {
		t.Fatalf("err = %v, want exit %d", err, exitFailure)
	}
	if !strings.Contains(buf.String(), "1: Nope") || !strings.Contains(buf.String(), "after") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRun_MissingFile(t *testing.T) {
	cmd, _ := testCommand(t)
	err := runRun(cmd, []string{filepath.Join(t.TempDir(), "missing.gp")})
	if codeOf(err) != exitFatal {
		t.Errorf("err = %v, want exit %d", err, exitFatal)
	}
}

func TestRun_StopOnFailureFromConfig(t *testing.T) {
	cmd, buf := testCommand(t)
	cfg.Processor.StopOnFailure = true
	path := writeFile(t, t.TempDir(), "halt.gp", "Message(Text=\"x\",CommandStatus=\"Failure\")\nMessage(Text=\"never\")\n")
	if err := runRun(cmd, []string{path}); codeOf(err) != exitFailure {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(buf.String(), "never\n") || !strings.Contains(buf.String(), "halted") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRun_Trace(t *testing.T) {
	cmd, _ := testCommand(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "flow.gp", "For(Name=\"i\",List=\"a,b\")\nMessage(Text=\"${i}\")\nEndFor(Name=\"i\")\n")
	runTrace = filepath.Join(dir, "trace.jsonl")
	if err := runRun(cmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	res, err := trace.VerifyFile(runTrace)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || !res.Complete {
		t.Errorf("trace result = %+v", res)
	}
}

func TestRun_TraceRedacted(t *testing.T) {
	cmd, _ := testCommand(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "login.gp", "Message(Text=\"pw ${Password}\")\n")
	cfg.Processor.Redact = []governance.Rule{{Pattern: "hunter2"}}
	runVars = []string{"Password=hunter2"}
	runTrace = filepath.Join(dir, "trace.jsonl")
	if err := runRun(cmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(runTrace)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("trace contains the secret:\n%s", data)
	}
	if !strings.Contains(string(data), governance.DefaultReplace) {
		t.Errorf("trace has no redaction marker:\n%s", data)
	}
}

func TestCheck(t *testing.T) {
	cmd, buf := testCommand(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.gp", "# ok\nMessage(Text=\"hi\")\n")
	if err := runCheck(cmd, []string{good}); err != nil {
		t.Fatalf("runCheck(good): %v", err)
	}
	if !strings.Contains(buf.String(), "is valid (2 lines)") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	bad := writeFile(t, dir, "bad.gp", "Message(Text=\"not run\")\nEndIf(Name=\"x\")\n")
	if err := runCheck(cmd, []string{bad}); codeOf(err) != exitFailure {
		t.Fatalf("runCheck(bad) = %v", err)
	}
	if strings.Contains(buf.String(), "not run\n") {
		t.Error("check must not execute commands")
	}
	if !strings.Contains(buf.String(), "2: EndIf") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormat(t *testing.T) {
	cmd, buf := testCommand(t)
	dir := t.TempDir()
	src := writeFile(t, dir, "messy.gp", "  Message( Text = \"a\" )\n# keep\n")
	if err := runFormat(cmd, []string{src}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "  Message( Text = \"a\" )\n# keep\n" {
		t.Errorf("round trip = %q", got)
	}

	buf.Reset()
	formatCanonical = true
	formatOut = filepath.Join(dir, "clean.gp")
	if err := runFormat(cmd, []string{src}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(formatOut)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "  Message(Text=\"a\")\n# keep\n" {
		t.Errorf("canonical = %q", got)
	}
}

func TestTest(t *testing.T) {
	cmd, buf := testCommand(t)
	dir := t.TempDir()
	writeFile(t, dir, "test-pass.gp", "Message(Text=\"ok\")\n")
	writeFile(t, dir, "test-fail.gp", "Nope()\n")
	writeFile(t, dir, "helper.gp", "Nope()\n")
	testSummary = filepath.Join(dir, "summary.html")
	testResults = filepath.Join(dir, "results.txt")

	err := runTest(cmd, []string{dir})
	if codeOf(err) != exitFailure {
		t.Fatalf("runTest = %v, want exit %d", err, exitFailure)
	}
	if !strings.Contains(buf.String(), "Total: 2  Passed: 1  Failed: 1  Disabled: 0") {
		t.Errorf("output = %q", buf.String())
	}
	for _, f := range []string{testSummary, testResults} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("report not written: %v", err)
		}
	}
}

func TestTest_JSON(t *testing.T) {
	cmd, buf := testCommand(t)
	dir := t.TempDir()
	writeFile(t, dir, "test-pass.gp", "Message(Text=\"ok\")\n")
	testJSON = true
	if err := runTest(cmd, []string{dir}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"passed": 1`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDescribe(t *testing.T) {
	cmd, buf := testCommand(t)
	describeRaw = true
	if err := runDescribe(cmd, []string{"readgeolayerfromgeojson"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "## ReadGeoLayerFromGeoJSON") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	if err := runDescribe(cmd, nil); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"**For**", "**FreeGeoLayers**"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("command list missing %s", want)
		}
	}

	if err := runDescribe(cmd, []string{"Nope"}); codeOf(err) != exitFatal {
		t.Errorf("unknown command: err = %v", err)
	}
}

func TestDiagram(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loop.gp", "For(Name=\"i\",List=\"a,b\")\n  Message(Text=\"${i}\")\nEndFor(Name=\"i\")\n")

	cmd, buf := testCommand(t)
	if err := runDiagram(cmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	want := "loop.gp\n└─ 1  For i\n   └─ 2  Message\n"
	if buf.String() != want {
		t.Errorf("ascii = %q, want %q", buf.String(), want)
	}

	diagramFormat = "mermaid"
	diagramOut = filepath.Join(dir, "loop.mmd")
	if err := runDiagram(cmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(diagramOut)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `L1 -->|"each"| L2`) {
		t.Errorf("mermaid = %s", data)
	}

	diagramFormat = "svg"
	if err := runDiagram(cmd, []string{path}); codeOf(err) != exitFatal {
		t.Errorf("bad format: err = %v", err)
	}
}

func TestSchema(t *testing.T) {
	cmd, buf := testCommand(t)
	if err := runSchema(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"title": "geoproc configuration"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	if !strings.Contains(buf.String(), "geoproc dev") {
		t.Errorf("output = %q", buf.String())
	}
}
