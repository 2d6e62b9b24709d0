// Package config loads the geoproc YAML configuration file.
//
// Loading follows three phases: a strict YAML decode that rejects unknown
// fields, JSON Schema validation against the schema reflected from the Go
// types, and domain rules that the schema cannot express.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/geoproc/pkg/governance"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "geoproc.yaml"

// Config is the root of geoproc.yaml.
type Config struct {
	Log        LogConfig        `yaml:"log"        json:"log,omitempty"`
	Processor  ProcessorConfig  `yaml:"processor"  json:"processor,omitempty"`
	Regression RegressionConfig `yaml:"regression" json:"regression,omitempty"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level,omitempty"  jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format" json:"format,omitempty" jsonschema:"enum=text,enum=json,default=text"`
}

// ProcessorConfig seeds every Processor.
type ProcessorConfig struct {
	StopOnFailure bool              `yaml:"stop_on_failure" json:"stop_on_failure,omitempty"`
	Properties    map[string]string `yaml:"properties"      json:"properties,omitempty"`
	// Trace is a JSONL trace file written by batch runs.
	Trace string `yaml:"trace" json:"trace,omitempty"`
	// Redact masks matching text in trace property values, parameters and
	// messages.
	Redact []governance.Rule `yaml:"redact" json:"redact,omitempty"`
}

// RegressionConfig configures the test runner.
type RegressionConfig struct {
	Pattern     string `yaml:"pattern"      json:"pattern,omitempty"      jsonschema:"default=test-*.gp"`
	ResultsFile string `yaml:"results_file" json:"results_file,omitempty"`
	SummaryFile string `yaml:"summary_file" json:"summary_file,omitempty"`
	FailFast    bool   `yaml:"fail_fast"    json:"fail_fast,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:        LogConfig{Level: "info", Format: "text"},
		Regression: RegressionConfig{Pattern: "test-*.gp"},
	}
}

// ValidationError is one configuration problem.
type ValidationError struct {
	Phase   string `json:"phase"` // structural, semantic, domain
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := LoadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path when it exists and returns Default otherwise.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// LoadFrom decodes and validates configuration from r. Fields absent from
// the document keep their defaults; an empty document yields Default.
func LoadFrom(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Phase: "structural", Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against the JSON Schema and the domain rules. The
// returned error joins every *ValidationError found.
func (c *Config) Validate() error {
	errs := validateSemantic(c)
	errs = append(errs, validateDomain(c)...)
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// PropertyValues returns the configured initial properties.
func (c *Config) PropertyValues() map[string]any {
	out := make(map[string]any, len(c.Processor.Properties))
	for k, v := range c.Processor.Properties {
		out[k] = v
	}
	return out
}

// Redactor compiles the configured redaction rules.
func (c *Config) Redactor() (*governance.Redactor, error) {
	return governance.Compile(c.Processor.Redact)
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document for
// geoproc.yaml from the Config Go types.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Config{})
	s.ID = "https://github.com/ormasoftchile/geoproc/schemas/config.json"
	s.Title = "geoproc configuration"
	s.Description = "Schema for geoproc.yaml (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config schema: %w", err)
	}
	return data, nil
}

func validateSemantic(c *Config) []*ValidationError {
	fail := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf(format, args...)}}
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fail("unmarshal schema: %v", err)
	}
	comp := sjsonschema.NewCompiler()
	if err := comp.AddResource("config.json", schemaDoc); err != nil {
		return fail("add schema resource: %v", err)
	}
	sch, err := comp.Compile("config.json")
	if err != nil {
		return fail("compile schema: %v", err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fail("marshal for schema validation: %v", err)
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fail("unmarshal document: %v", err)
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *sjsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fail("%v", err)
	}
	var errs []*ValidationError
	for _, cause := range flatten(ve) {
		errs = append(errs, &ValidationError{
			Phase:   "semantic",
			Path:    strings.Join(cause.InstanceLocation, "."),
			Message: fmt.Sprintf("%v", cause.ErrorKind),
		})
	}
	return errs
}

// flatten collects the leaf errors of a validation error tree.
func flatten(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flatten(cause)...)
	}
	return flat
}

func validateDomain(c *Config) []*ValidationError {
	var errs []*ValidationError
	if p := c.Regression.Pattern; p != "" {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, &ValidationError{Phase: "domain", Path: "regression.pattern",
				Message: fmt.Sprintf("invalid file pattern %q: %v", p, err)})
		}
	}
	for name := range c.Processor.Properties {
		if name == "" || strings.ContainsAny(name, "${} \t") {
			errs = append(errs, &ValidationError{Phase: "domain", Path: "processor.properties",
				Message: fmt.Sprintf("invalid property name %q", name)})
		}
	}
	if _, err := governance.Compile(c.Processor.Redact); err != nil {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "processor.redact",
			Message: err.Error()})
	}
	if c.Regression.ResultsFile != "" && c.Regression.ResultsFile == c.Regression.SummaryFile {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "regression.summary_file",
			Message: "summary_file must differ from results_file"})
	}
	return errs
}
