// Package regression runs collections of command files as regression tests.
//
// Each file runs in a fresh Processor. Its worst severity is compared with
// the expected severity declared by an "#@expectedStatus" comment (Success
// when absent), so a file written to fail can still pass. Files marked
// "#@enabled False", or restricted by "#@os" to another system, are reported
// as disabled and not counted as passed or failed.
package regression

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/ormasoftchile/geoproc/pkg/ctxlog"
	"github.com/ormasoftchile/geoproc/pkg/kernel/cmdfile"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// DefaultPattern selects test files when a directory is given.
const DefaultPattern = "test-*" + cmdfile.Ext

// Diagnostic is one status entry of a tested command file.
type Diagnostic struct {
	Line    int    `json:"line"`
	Command string `json:"command"`
	status.Entry
}

// Row is the outcome of one command file.
type Row struct {
	Index    int             `json:"index"`
	Enabled  bool            `json:"enabled"`
	Pass     bool            `json:"pass"`
	Expected status.Severity `json:"expected"`
	Actual   status.Severity `json:"actual"`
	Path     string          `json:"path"`
	Duration time.Duration   `json:"duration"`
	// Error is set when the file could not be read or run at all.
	Error   string       `json:"error,omitempty"`
	Entries []Diagnostic `json:"entries,omitempty"`
}

// Tally counts outcomes. Disabled files are not counted as passed or failed.
type Tally struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Disabled int `json:"disabled"`
}

// Report is the result of a regression run.
type Report struct {
	Rows  []Row `json:"rows"`
	Tally Tally `json:"tally"`
}

// OK reports whether no enabled file failed.
func (r *Report) OK() bool { return r.Tally.Failed == 0 }

// Runner runs command files as regression tests.
type Runner struct {
	// Registry builds commands; nil uses command.DefaultRegistry.
	Registry *command.Registry
	// Properties seed every Processor.
	Properties map[string]any
	// Pattern selects files inside directories; empty uses DefaultPattern.
	Pattern string
	// FailFast stops after the first failing file.
	FailFast bool
	// Logger overrides the logger carried by the context.
	Logger *slog.Logger
	// Output receives Message text from the workflows; nil discards it.
	Output io.Writer
	// GOOS is matched against "#@os"; empty uses runtime.GOOS.
	GOOS string
}

func (r *Runner) pattern() string {
	if r.Pattern == "" {
		return DefaultPattern
	}
	return r.Pattern
}

// Discover expands directories into the files matching the runner's pattern,
// recursively and in lexical order. File arguments are kept as given.
func (r *Runner) Discover(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(r.pattern(), d.Name())
			if err != nil {
				return fmt.Errorf("pattern %q: %w", r.pattern(), err)
			}
			if ok {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", p, err)
		}
		slices.Sort(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// Run discovers and runs every command file under paths. A cancelled
// context stops the run between files; the partial report is returned with
// the context error.
func (r *Runner) Run(ctx context.Context, paths []string) (*Report, error) {
	files, err := r.Discover(paths)
	if err != nil {
		return nil, err
	}
	if r.Logger != nil {
		ctx = ctxlog.WithLogger(ctx, r.Logger)
	}
	logger := ctxlog.FromContext(ctx)

	report := &Report{}
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := r.RunFile(ctx, i+1, f)
		report.Rows = append(report.Rows, row)
		report.Tally.Total++
		switch {
		case !row.Enabled:
			report.Tally.Disabled++
		case row.Pass:
			report.Tally.Passed++
		default:
			report.Tally.Failed++
		}
		logger.Info("command file tested",
			"index", row.Index,
			"path", row.Path,
			"enabled", row.Enabled,
			"expected", row.Expected.String(),
			"actual", row.Actual.String(),
			"pass", row.Pass)

		if r.FailFast && row.Enabled && !row.Pass {
			break
		}
	}
	return report, nil
}

// RunFile runs one command file in a fresh Processor.
func (r *Runner) RunFile(ctx context.Context, index int, path string) (row Row) {
	row = Row{Index: index, Enabled: true, Path: path, Expected: status.Success}
	start := time.Now()
	defer func() { row.Duration = time.Since(start) }()

	reg := r.Registry
	if reg == nil {
		reg = command.DefaultRegistry()
	}
	opts := []processor.Option{processor.WithRegistry(reg), processor.WithProperties(r.Properties)}
	if r.Output != nil {
		opts = append(opts, processor.WithOutput(r.Output))
	}
	p := processor.New(opts...)
	if err := p.LoadFile(path); err != nil {
		row.Actual = status.Failure
		row.Error = err.Error()
		return row
	}

	// Invalid directives are reported on their comment line by the run; a
	// disabled file is not run, so they are reported here instead.
	d, derr := cmdfile.DirectivesOf(p.Commands())
	row.Expected = d.ExpectedStatus
	goos := r.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if !d.Enabled || !d.RunsOn(goos) {
		row.Enabled = false
		if derr != nil {
			row.Entries = append(row.Entries, Diagnostic{Command: "#@", Entry: status.Warningf(status.PhaseInitialization,
				"Fix the directive comment.", "%v", derr)})
		}
		return row
	}

	res, err := p.Run(ctx)
	if err != nil && res == nil {
		row.Actual = status.Failure
		row.Error = err.Error()
		return row
	}
	if err != nil {
		row.Error = err.Error()
	}
	row.Actual = res.Worst
	row.Pass = row.Actual == row.Expected && err == nil

	for i, c := range p.Commands() {
		for _, e := range c.Status().Entries() {
			row.Entries = append(row.Entries, Diagnostic{Line: i + 1, Command: c.Name(), Entry: e})
		}
	}
	return row
}
