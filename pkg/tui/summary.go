package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// WriteStatus lists every command that recorded a status entry, one block
// per command: the line number and command name, then its entries. When
// phase is non-nil only entries of that phase are listed. It returns the
// number of commands listed.
func WriteStatus(w io.Writer, cmds []command.Command, phase *status.Phase) int {
	type block struct {
		label   string
		entries []status.Entry
	}
	var blocks []block
	width := 0
	for i, c := range cmds {
		entries := c.Status().Entries()
		if phase != nil {
			entries = c.Status().EntriesFor(*phase)
		}
		if len(entries) == 0 {
			continue
		}
		label := fmt.Sprintf("%d: %s", i+1, c.Name())
		width = max(width, runewidth.StringWidth(label))
		blocks = append(blocks, block{label, entries})
	}
	for _, b := range blocks {
		for j, e := range b.entries {
			label := ""
			if j == 0 {
				label = b.label
			}
			fmt.Fprintf(w, "  %s  %s %s\n", runewidth.FillRight(label, width), Badge(e.Severity), e.Message)
			if e.Recommendation != "" {
				fmt.Fprintf(w, "  %s  %s\n", strings.Repeat(" ", width), Dim("→ "+e.Recommendation))
			}
		}
	}
	return len(blocks)
}

// Summary is the closing line of a run.
type Summary struct {
	Source   string
	Worst    status.Severity
	Commands int
	Executed int
	Halted   bool
	Duration time.Duration
}

// WriteSummary writes the closing line of a run.
func WriteSummary(w io.Writer, s Summary) {
	extra := ""
	if s.Halted {
		extra = ", halted"
	}
	fmt.Fprintf(w, "%s %s  %d commands, %d executed%s  %s\n",
		Badge(s.Worst), Title(s.Source), s.Commands, s.Executed, extra, Dim(s.Duration.Round(time.Millisecond).String()))
}
