package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFrom(t *testing.T) {
	doc := `
log:
  level: debug
processor:
  stop_on_failure: true
  properties:
    OutputDir: out
regression:
  results_file: results.txt
`
	cfg, err := LoadFrom(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	want := &Config{
		Log: LogConfig{Level: "debug", Format: "text"},
		Processor: ProcessorConfig{
			StopOnFailure: true,
			Properties:    map[string]string{"OutputDir": "out"},
		},
		Regression: RegressionConfig{Pattern: "test-*.gp", ResultsFile: "results.txt"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"OutputDir": "out"}, cfg.PropertyValues()); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_Redactor(t *testing.T) {
	doc := "processor:\n  redact:\n    - pattern: \"key=\\\\w+\"\n    - pattern: secret\n      replace: \"***\"\n"
	cfg, err := LoadFrom(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	r, err := cfg.Redactor()
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Redact("key=abc secret"); got != "[REDACTED] ***" {
		t.Errorf("Redact = %q", got)
	}
}

func TestLoadFrom_Empty(t *testing.T) {
	cfg, err := LoadFrom(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty document should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		phase string
		path  string
	}{
		{"unknown field", "log:\n  colour: red\n", "structural", ""},
		{"bad level", "log:\n  level: loud\n", "semantic", "log.level"},
		{"bad format", "log:\n  format: xml\n", "semantic", "log.format"},
		{"bad pattern", "regression:\n  pattern: \"[\"\n", "domain", "regression.pattern"},
		{"bad property", "processor:\n  properties:\n    \"${X}\": y\n", "domain", "processor.properties"},
		{"bad redaction", "processor:\n  redact:\n    - pattern: \"(\"\n", "domain", "processor.redact"},
		{"same report files", "regression:\n  results_file: r.txt\n  summary_file: r.txt\n", "domain", "regression.summary_file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %T %v, want *ValidationError", err, err)
			}
			if ve.Phase != tt.phase || ve.Path != tt.path {
				t.Errorf("got phase=%q path=%q, want phase=%q path=%q (%v)", ve.Phase, ve.Path, tt.phase, tt.path, err)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(filepath.Join(dir, DefaultFile))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("level = %q, want default", cfg.Log.Level)
	}

	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte("log:\n  format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("format = %q, want json", cfg.Log.Format)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if doc["title"] != "geoproc configuration" {
		t.Errorf("title = %v", doc["title"])
	}
	for _, want := range []string{"stop_on_failure", "results_file", `"debug"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %s", want)
		}
	}
}
