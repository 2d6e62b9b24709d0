// Package status records per-command diagnostics. Each command instance owns
// a Log of entries keyed by execution phase and graded by severity.
package status

import (
	"fmt"
	"strings"
)

// Phase is the execution phase an entry was recorded in.
type Phase int

const (
	PhaseInitialization Phase = iota
	PhaseRun
)

func (p Phase) String() string {
	switch p {
	case PhaseInitialization:
		return "Initialization"
	case PhaseRun:
		return "Run"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "initialization":
		*p = PhaseInitialization
	case "run":
		*p = PhaseRun
	default:
		return fmt.Errorf("unknown phase %q", string(b))
	}
	return nil
}

// Severity grades an entry. Values are ordered: Success < Warning < Failure.
type Severity int

const (
	Success Severity = iota
	Warning
	Failure
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "Success"
	case Warning:
		return "Warning"
	case Failure:
		return "Failure"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name (used by JSON and YAML output).
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(text string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "success":
		return Success, nil
	case "warning":
		return Warning, nil
	case "failure":
		return Failure, nil
	default:
		return Success, fmt.Errorf("unknown severity %q (expected Success, Warning or Failure)", text)
	}
}

// Max returns the more severe of a and b.
func Max(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}

// Entry is one diagnostic record.
type Entry struct {
	Phase          Phase    `json:"phase"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
}

func (e Entry) String() string {
	if e.Recommendation == "" {
		return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", e.Phase, e.Severity, e.Message, e.Recommendation)
}

// Failuref builds a Failure entry with a formatted message.
func Failuref(phase Phase, rec, format string, args ...any) Entry {
	return Entry{Phase: phase, Severity: Failure, Message: fmt.Sprintf(format, args...), Recommendation: rec}
}

// Warningf builds a Warning entry with a formatted message.
func Warningf(phase Phase, rec, format string, args ...any) Entry {
	return Entry{Phase: phase, Severity: Warning, Message: fmt.Sprintf(format, args...), Recommendation: rec}
}

// Successf builds a Success entry with a formatted message.
func Successf(phase Phase, format string, args ...any) Entry {
	return Entry{Phase: phase, Severity: Success, Message: fmt.Sprintf(format, args...)}
}

// Log is the append-only audit trail of one command instance.
// The zero value is ready to use.
type Log struct {
	entries []Entry
}

// Add appends entries to the log.
func (l *Log) Add(entries ...Entry) {
	l.entries = append(l.entries, entries...)
}

// AddEntry appends a single entry built from its parts.
func (l *Log) AddEntry(phase Phase, sev Severity, message, recommendation string) {
	l.Add(Entry{Phase: phase, Severity: sev, Message: message, Recommendation: recommendation})
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesFor returns the entries recorded in one phase.
func (l *Log) EntriesFor(phase Phase) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Phase == phase {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Worst returns the maximum severity across both phases (Success when empty).
func (l *Log) Worst() Severity {
	worst := Success
	for _, e := range l.entries {
		worst = Max(worst, e.Severity)
	}
	return worst
}

// WorstFor returns the maximum severity of entries in one phase.
func (l *Log) WorstFor(phase Phase) Severity {
	worst := Success
	for _, e := range l.entries {
		if e.Phase == phase {
			worst = Max(worst, e.Severity)
		}
	}
	return worst
}

// WorstOf rolls up several logs into one severity.
func WorstOf(logs ...*Log) Severity {
	worst := Success
	for _, l := range logs {
		if l != nil {
			worst = Max(worst, l.Worst())
		}
	}
	return worst
}
