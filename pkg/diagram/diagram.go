// Package diagram renders the block structure of a command file as a Mermaid
// flowchart or an ASCII outline.
package diagram

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/geoproc/pkg/kernel/command"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram of cmds. Comments and blank lines are left
// out; block end commands close their block and are not drawn. Commands that
// recorded a Failure are highlighted.
func Generate(cmds []command.Command, title string, format Format) (string, error) {
	tree := build(cmds)
	switch format {
	case FormatMermaid:
		return generateMermaid(tree), nil
	case FormatASCII:
		return generateASCII(tree, title), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

type node struct {
	line     int
	label    string
	kind     string // "For", "If", or "" for operations
	failed   bool
	children []*node
}

// build nests commands by block. An end closes the innermost open block of
// the same type and name, and any unmatched blocks opened after it; an end
// that matches nothing is dropped.
func build(cmds []command.Command) []*node {
	root := &node{}
	stack := []*node{root}
	open := []command.Block{nil}

	for i, c := range cmds {
		k := command.KindOf(c)
		if k == command.KindComment || k == command.KindBlank {
			continue
		}
		n := &node{line: i + 1, label: c.Name(), failed: c.Status().Worst() == status.Failure}
		b, isBlock := c.(command.Block)
		if isBlock && !b.Opens() {
			for d := len(open) - 1; d > 0; d-- {
				if open[d].BlockType() == b.BlockType() && open[d].BlockName() == b.BlockName() {
					stack, open = stack[:d], open[:d]
					break
				}
			}
			continue
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, n)
		if isBlock {
			n.kind = b.BlockType()
			n.label = b.BlockType() + " " + b.BlockName()
			stack = append(stack, n)
			open = append(open, b)
		}
	}
	return root.children
}

// --- Mermaid flowchart ---

type edge struct {
	from int
	text string
}

type mermaid struct {
	defs  []edge
	edges []edge
}

func nodeID(n *node) string { return "L" + strconv.Itoa(n.line) }

func quote(s string) string { return `"` + strings.ReplaceAll(s, `"`, "#quot;") + `"` }

func (g *mermaid) link(from *node, to, label string) {
	arrow := " --> "
	if label != "" {
		arrow = " -->|" + quote(label) + "| "
	}
	g.edges = append(g.edges, edge{from.line, nodeID(from) + arrow + to})
}

// seq draws nodes in order and returns the id of the first one, or next
// when nodes is empty.
func (g *mermaid) seq(nodes []*node, next string) string {
	for i := len(nodes) - 1; i >= 0; i-- {
		next = g.node(nodes[i], next)
	}
	return next
}

func (g *mermaid) node(n *node, next string) string {
	id := nodeID(n)
	label := quote(fmt.Sprintf("%d: %s", n.line, n.label))
	switch n.kind {
	case "For":
		g.defs = append(g.defs, edge{n.line, id + "{{" + label + "}}"})
		if body := g.seq(n.children, id); body != id {
			g.link(n, body, "each")
		}
		g.link(n, next, "done")
	case "If":
		g.defs = append(g.defs, edge{n.line, id + "{" + label + "}"})
		g.link(n, g.seq(n.children, next), "true")
		g.link(n, next, "false")
	default:
		g.defs = append(g.defs, edge{n.line, id + "[" + label + "]"})
		g.link(n, next, "")
	}
	if n.failed {
		g.defs = append(g.defs, edge{n.line, "style " + id + " fill:#f8d0d0,stroke:#c00"})
	}
	return id
}

func generateMermaid(tree []*node) string {
	g := &mermaid{}
	first := g.seq(tree, "END")
	byLine := func(a, b edge) int { return a.from - b.from }
	slices.SortStableFunc(g.defs, byLine)
	slices.SortStableFunc(g.edges, byLine)

	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    START([Start]) --> " + first + "\n")
	for _, d := range g.defs {
		b.WriteString("    " + d.text + "\n")
	}
	for _, e := range g.edges {
		b.WriteString("    " + e.text + "\n")
	}
	b.WriteString("    END([End])\n")
	return b.String()
}

// --- ASCII ---

func generateASCII(tree []*node, title string) string {
	var b strings.Builder
	if title == "" {
		title = "Command file"
	}
	if len(tree) == 0 {
		b.WriteString(title + " (empty)\n")
		return b.String()
	}
	b.WriteString(title + "\n")
	width := runewidth.StringWidth(strconv.Itoa(maxLine(tree)))
	writeASCII(&b, tree, "", width)
	return b.String()
}

func writeASCII(b *strings.Builder, nodes []*node, prefix string, width int) {
	for i, n := range nodes {
		branch, indent := "├─ ", "│  "
		if i == len(nodes)-1 {
			branch, indent = "└─ ", "   "
		}
		mark := ""
		if n.failed {
			mark = "  ✗"
		}
		fmt.Fprintf(b, "%s%s%s  %s%s\n", prefix, branch, runewidth.FillLeft(strconv.Itoa(n.line), width), n.label, mark)
		writeASCII(b, n.children, prefix+indent, width)
	}
}

func maxLine(nodes []*node) int {
	m := 0
	for _, n := range nodes {
		m = max(m, n.line, maxLine(n.children))
	}
	return m
}
