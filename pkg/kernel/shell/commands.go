package shell

import (
	"context"
	"fmt"

	"github.com/ormasoftchile/geoproc/pkg/kernel/cmdfile"
	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/props"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// runLine runs one command line and prints its status entries.
func (s *Shell) runLine(ctx context.Context, line string) {
	c, err := s.proc.RunLine(ctx, line)
	if err != nil {
		fmt.Fprintf(s.output, "Error: %v\n", err)
		return
	}
	for _, e := range c.Status().Entries() {
		s.printEntry(e)
	}
}

func (s *Shell) printEntry(e status.Entry) {
	mark := "✓"
	switch e.Severity {
	case status.Warning:
		mark = "!"
	case status.Failure:
		mark = "✗"
	}
	fmt.Fprintf(s.output, "  %s %s\n", mark, e)
}

// handleProps lists properties sorted by name.
func (s *Shell) handleProps() {
	store := s.proc.Properties()
	if store.Len() == 0 {
		fmt.Fprintln(s.output, "No properties defined.")
		return
	}
	for _, name := range store.Names() {
		v, _ := store.Get(name)
		fmt.Fprintf(s.output, "  %s = %q\n", name, props.Format(v))
	}
}

// handleResources lists processed resources in registration order.
func (s *Shell) handleResources() {
	reg := s.proc.Resources()
	if reg.Len() == 0 {
		fmt.Fprintln(s.output, "No resources registered.")
		return
	}
	for _, id := range reg.IDs() {
		r, _ := reg.Get(id)
		fmt.Fprintf(s.output, "  %s [%s] %s\n", r.ID, r.Kind, r.Source)
	}
}

// handleStatus shows the worst severity and the entries of the last command.
func (s *Shell) handleStatus() {
	cmds := s.proc.Commands()
	fmt.Fprintf(s.output, "State: %s  Worst: %s  Lines: %d\n", s.proc.State(), s.proc.Worst(), len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		k := command.KindOf(cmds[i])
		if k == command.KindComment || k == command.KindBlank {
			continue
		}
		fmt.Fprintf(s.output, "Last: %s\n", cmds[i].Text())
		for _, e := range cmds[i].Status().Entries() {
			s.printEntry(e)
		}
		return
	}
}

// handleHistory lists the lines entered so far with their worst severity.
func (s *Shell) handleHistory() {
	cmds := s.proc.Commands()
	if len(cmds) == 0 {
		fmt.Fprintln(s.output, "No commands entered yet.")
		return
	}
	for i, c := range cmds {
		fmt.Fprintf(s.output, "  %3d %-7s %s\n", i+1, c.Status().Worst(), c.Text())
	}
}

// handleSave writes the lines entered so far as a command file.
func (s *Shell) handleSave(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(s.output, "Usage: :save <file>")
		return
	}
	if err := cmdfile.Write(parts[1], s.proc.Commands()); err != nil {
		fmt.Fprintf(s.output, "  Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.output, "  Saved %d lines to %s\n", len(s.proc.Commands()), parts[1])
}

// handleLoad runs a command file against the live properties and resources.
// The file's lines replace the history.
func (s *Shell) handleLoad(ctx context.Context, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(s.output, "Usage: :load <file>")
		return
	}
	if err := s.proc.LoadFile(parts[1]); err != nil {
		fmt.Fprintf(s.output, "  Error: %v\n", err)
		return
	}
	res, err := s.proc.Run(ctx)
	if err != nil && res == nil {
		fmt.Fprintf(s.output, "  Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.output, "  Ran %s: %d commands executed, worst %s\n", parts[1], res.Executed, res.Worst)
	if err != nil {
		fmt.Fprintf(s.output, "  Error: %v\n", err)
	}
}

// handleHelp displays the shell commands.
func (s *Shell) handleHelp() {
	fmt.Fprintln(s.output, "Enter a command line such as Message(Text=\"hello\") to run it.")
	fmt.Fprintln(s.output, "Shell commands:")
	fmt.Fprintln(s.output, "  :props (:p)      Show properties")
	fmt.Fprintln(s.output, "  :resources (:r)  Show processed resources")
	fmt.Fprintln(s.output, "  :status (:s)     Show worst severity and the last command's entries")
	fmt.Fprintln(s.output, "  :history (:h)    Show the lines entered so far")
	fmt.Fprintln(s.output, "  :save <file>     Save the lines entered so far as a command file")
	fmt.Fprintln(s.output, "  :load <file>     Run a command file in this session")
	fmt.Fprintln(s.output, "  :help (:?)       Show this help")
	fmt.Fprintln(s.output, "  :quit (:q)       Exit the shell")
}
