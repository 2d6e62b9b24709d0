// Package cmdfile reads and writes command files: one command, comment or
// blank line per line of text.
//
// Reading never drops a line. Lines that cannot be parsed become placeholder
// commands whose validation fails. Writing reproduces the original text of
// every unmodified command, so a read followed by a write is byte-stable
// except for line endings (CRLF is read as LF, and output always ends with a
// newline).
package cmdfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
)

// Ext is the conventional command file extension.
const Ext = ".gp"

// maxLine bounds a single line of a command file.
const maxLine = 1024 * 1024

// ErrNotFound is returned by Read when the file does not exist.
var ErrNotFound = errors.New("command file not found")

// Read parses the command file at path.
func Read(path string, reg *command.Registry) ([]command.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open command file: %w", err)
	}
	defer f.Close()
	cmds, err := ReadFrom(f, reg)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return cmds, nil
}

// ReadFrom parses command file text from r.
func ReadFrom(r io.Reader, reg *command.Registry) ([]command.Command, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var cmds []command.Command
	first := true
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		cmds = append(cmds, reg.FromLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

// ParseText parses command file text held in memory.
func ParseText(text string, reg *command.Registry) []command.Command {
	cmds, _ := ReadFrom(strings.NewReader(text), reg)
	return cmds
}

type writeConfig struct {
	canonical bool
}

// WriteOption configures Write and WriteTo.
type WriteOption func(*writeConfig)

// Canonical rewrites every command as Name(P="v",...), keeping its
// indentation. Comments, blank lines and unparseable lines are unchanged.
func Canonical() WriteOption {
	return func(c *writeConfig) { c.canonical = true }
}

type canonicaler interface {
	Canonical() string
}

// WriteTo writes cmds to w, one line each.
func WriteTo(w io.Writer, cmds []command.Command, opts ...WriteOption) error {
	var cfg writeConfig
	for _, o := range opts {
		o(&cfg)
	}
	bw := bufio.NewWriter(w)
	for _, c := range cmds {
		if _, err := bw.WriteString(lineOf(c, cfg) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write writes cmds to the file at path, replacing it.
func Write(path string, cmds []command.Command, opts ...WriteOption) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create command file: %w", err)
	}
	if err := WriteTo(f, cmds, opts...); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Text renders cmds as command file text.
func Text(cmds []command.Command, opts ...WriteOption) string {
	var b strings.Builder
	_ = WriteTo(&b, cmds, opts...)
	return b.String()
}

func lineOf(c command.Command, cfg writeConfig) string {
	if !cfg.canonical {
		return c.Text()
	}
	switch command.KindOf(c) {
	case command.KindComment, command.KindBlank, command.KindUnknown:
		return c.Text()
	}
	if cc, ok := c.(canonicaler); ok {
		return cc.Canonical()
	}
	return c.Text()
}
