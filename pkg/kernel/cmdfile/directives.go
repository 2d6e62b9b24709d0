package cmdfile

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Directive names, written as "#@name value" comments.
const (
	DirectiveEnabled        = "enabled"
	DirectiveExpectedStatus = "expectedStatus"
	DirectiveOS             = "os"
	DirectiveStopOnFailure  = "stopOnFailure"
)

// Directives are per-file settings embedded in comments.
type Directives struct {
	Enabled        bool
	ExpectedStatus status.Severity
	// OS lists the operating systems the file applies to; empty means all.
	// Values are matched case-insensitively against GOOS, and "UNIX" matches
	// any non-Windows system.
	OS            []string
	StopOnFailure bool
}

// DirectivesOf collects the directives in cmds. Unrecognized directive names
// are ignored; invalid values keep the default and are reported in the
// returned error.
func DirectivesOf(cmds []command.Command) (Directives, error) {
	d := Directives{Enabled: true, ExpectedStatus: status.Success}
	var errs []error
	for i, c := range cmds {
		cm, ok := c.(*command.Comment)
		if !ok {
			continue
		}
		name, value, ok := cm.Directive()
		if !ok {
			continue
		}
		if err := d.apply(name, value); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
		}
	}
	return d, errors.Join(errs...)
}

// CheckDirective reports an invalid value in c's directive. Comments that
// are not directives, and unrecognized directive names, are valid.
func CheckDirective(c *command.Comment) error {
	name, value, ok := c.Directive()
	if !ok {
		return nil
	}
	var d Directives
	return d.apply(name, value)
}

func (d *Directives) apply(name, value string) error {
	switch strings.ToLower(name) {
	case strings.ToLower(DirectiveEnabled):
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("#@%s %q: expected True or False", name, value)
		}
		d.Enabled = b
	case strings.ToLower(DirectiveExpectedStatus):
		sev, err := status.ParseSeverity(value)
		if err != nil {
			return fmt.Errorf("#@%s: %w", name, err)
		}
		d.ExpectedStatus = sev
	case strings.ToLower(DirectiveOS):
		d.OS = append(d.OS, strings.Fields(strings.ReplaceAll(value, ",", " "))...)
	case strings.ToLower(DirectiveStopOnFailure):
		if value == "" {
			d.StopOnFailure = true
			return nil
		}
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return fmt.Errorf("#@%s %q: expected True or False", name, value)
		}
		d.StopOnFailure = b
	}
	return nil
}

// RunsOn reports whether the file applies to goos.
func (d Directives) RunsOn(goos string) bool {
	if len(d.OS) == 0 {
		return true
	}
	return slices.ContainsFunc(d.OS, func(name string) bool {
		if strings.EqualFold(name, "unix") {
			return goos != "windows"
		}
		return strings.EqualFold(name, goos)
	})
}

// RunsHere reports whether the file applies to the current system.
func (d Directives) RunsHere() bool { return d.RunsOn(runtime.GOOS) }
