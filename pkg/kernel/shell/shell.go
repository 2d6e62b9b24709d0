// Package shell implements the interactive mode: each input line is parsed
// as a command and run at once against one live Processor, so properties and
// resources persist between lines.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/geoproc/pkg/kernel/processor"
)

// Shell is a read-eval loop over one Processor.
type Shell struct {
	proc   *processor.Processor
	output io.Writer
	rl     *readline.Instance
}

// New creates a shell for p. Output from meta commands goes to w; command
// output goes wherever p was configured to print.
func New(p *processor.Processor, w io.Writer) *Shell {
	if w == nil {
		w = os.Stdout
	}
	return &Shell{proc: p, output: w}
}

// Processor returns the live processor.
func (s *Shell) Processor() *processor.Processor { return s.proc }

// Run starts the interactive loop. It returns nil on :quit, Ctrl-C or EOF.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.prompt(),
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	s.rl = rl
	defer rl.Close()

	fmt.Fprintf(s.output, "geoproc shell: %d commands available\n", len(s.proc.Registry().Names()))
	fmt.Fprintf(s.output, "Type a command line to run it, or ':help' for shell commands.\n\n")

	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if quit := s.Exec(ctx, line); quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Exec handles one input line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if !strings.HasPrefix(trimmed, ":") {
		s.runLine(ctx, line)
		return false
	}

	parts := strings.Fields(trimmed)
	switch parts[0] {
	case ":props", ":p":
		s.handleProps()
	case ":resources", ":r":
		s.handleResources()
	case ":status", ":s":
		s.handleStatus()
	case ":history", ":h":
		s.handleHistory()
	case ":save":
		s.handleSave(parts)
	case ":load":
		s.handleLoad(ctx, parts)
	case ":help", ":?":
		s.handleHelp()
	case ":quit", ":q":
		fmt.Fprintln(s.output, "Bye.")
		return true
	default:
		fmt.Fprintf(s.output, "Unknown shell command: %q. Type ':help' for available commands.\n", parts[0])
	}
	return false
}

// prompt shows the number of lines entered and the worst severity so far.
func (s *Shell) prompt() string {
	n := len(s.proc.Commands())
	if n == 0 {
		return "geoproc> "
	}
	return fmt.Sprintf("geoproc[%d | %s]> ", n, s.proc.Worst())
}

func (s *Shell) completer() *readline.PrefixCompleter {
	c := readline.NewPrefixCompleter()
	for _, name := range s.proc.Registry().Names() {
		c.Children = append(c.Children, readline.PcItem(name+"("))
	}
	for _, meta := range []string{":props", ":resources", ":status", ":history", ":save", ":load", ":help", ":quit"} {
		c.Children = append(c.Children, readline.PcItem(meta))
	}
	return c
}
