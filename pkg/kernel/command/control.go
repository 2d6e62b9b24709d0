package command

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ormasoftchile/geoproc/pkg/kernel/eval"
	"github.com/ormasoftchile/geoproc/pkg/kernel/parse"
	"github.com/ormasoftchile/geoproc/pkg/kernel/status"
)

// Block is implemented by control-flow commands. Start and end commands are
// paired by BlockType and the value of their Name parameter; the processor
// drives them directly, so their Execute is a no-op.
type Block interface {
	Command
	Opens() bool
	BlockType() string
	BlockName() string
}

// maxLoopItems bounds numeric sequences.
const maxLoopItems = 1_000_000

var forDoc = Doc{
	Name:    "For",
	Summary: "Repeat the commands up to the matching EndFor once per item of a list or numeric sequence.",
	Params: []ParamDoc{
		{Name: "Name", Required: true, Description: "Loop name; the matching EndFor must use the same name."},
		{Name: "IteratorProperty", Description: "Property set to the current item.", Default: "the loop Name"},
		{Name: "List", Description: "Comma-separated list of items."},
		{Name: "ListProperty", Description: "Property holding a list (or comma-separated string) of items."},
		{Name: "SequenceStart", Description: "First value of a numeric sequence."},
		{Name: "SequenceEnd", Description: "Last value of a numeric sequence (inclusive)."},
		{Name: "SequenceIncrement", Description: "Step of the numeric sequence.", Default: "1"},
	},
}

// For starts a loop block.
type For struct{ Base }

func (c *For) ParameterNames() []string { return forDoc.ParamNames() }
func (c *For) Opens() bool              { return true }
func (c *For) BlockType() string        { return "For" }
func (c *For) BlockName() string        { return c.Params().Value("Name") }

func (c *For) Validate(params *parse.Params) []status.Entry {
	entries := forDoc.Check(params)
	sources := 0
	for _, n := range []string{"List", "ListProperty", "SequenceStart"} {
		if params.Value(n) != "" {
			sources++
		}
	}
	if sources != 1 {
		entries = append(entries, status.Failuref(status.PhaseInitialization,
			"Specify exactly one of List, ListProperty or SequenceStart/SequenceEnd.",
			"For: exactly one item source is required (found %d)", sources))
	}
	if params.Value("SequenceStart") != "" && params.Value("SequenceEnd") == "" {
		entries = append(entries, status.Failuref(status.PhaseInitialization,
			"Specify SequenceEnd.", "For: SequenceStart requires SequenceEnd"))
	}
	for _, n := range []string{"SequenceStart", "SequenceEnd", "SequenceIncrement"} {
		v := params.Value(n)
		if v == "" || strings.Contains(v, "${") {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			entries = append(entries, status.Failuref(status.PhaseInitialization,
				"Specify a number.", "For: %s %q is not a number", n, v))
		}
	}
	return entries
}

func (c *For) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) { return nil, nil }

// IteratorName returns the property the loop sets on each iteration.
func (c *For) IteratorName(params *parse.Params) string {
	if v := strings.TrimSpace(params.Value("IteratorProperty")); v != "" {
		return v
	}
	return strings.TrimSpace(params.Value("Name"))
}

// Items computes the loop items from expanded parameters.
func (c *For) Items(env Env, params *parse.Params) ([]any, error) {
	switch {
	case params.Value("List") != "":
		list := SplitList(params.Value("List"))
		items := make([]any, len(list))
		for i, v := range list {
			items[i] = v
		}
		return items, nil

	case params.Value("ListProperty") != "":
		name := params.Value("ListProperty")
		v, ok := env.Properties().Get(name)
		if !ok {
			return nil, runFailure("Set the property before the loop.", "For: list property %q is not defined", name)
		}
		switch list := v.(type) {
		case []any:
			return list, nil
		case []string:
			items := make([]any, len(list))
			for i, s := range list {
				items[i] = s
			}
			return items, nil
		case string:
			if strings.TrimSpace(list) == "" {
				return nil, nil
			}
			return c.Items(env, parse.NewParams("List", list))
		default:
			return nil, runFailure("Use a list or comma-separated string property.", "For: property %q has type %T, not a list", name, v)
		}

	default:
		return sequence(params)
	}
}

func sequence(params *parse.Params) ([]any, error) {
	num := func(name, def string) (float64, error) {
		v := strings.TrimSpace(params.Value(name))
		if v == "" {
			v = def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, runFailure("Specify a number.", "For: %s %q is not a number", name, v)
		}
		return f, nil
	}
	start, err := num("SequenceStart", "")
	if err != nil {
		return nil, err
	}
	end, err := num("SequenceEnd", "")
	if err != nil {
		return nil, err
	}
	inc, err := num("SequenceIncrement", "1")
	if err != nil {
		return nil, err
	}
	if inc == 0 {
		return nil, runFailure("Use a non-zero SequenceIncrement.", "For: SequenceIncrement must not be zero")
	}
	integral := start == math.Trunc(start) && inc == math.Trunc(inc)

	var items []any
	for i := 0; ; i++ {
		v := start + float64(i)*inc
		if (inc > 0 && v > end) || (inc < 0 && v < end) {
			break
		}
		if len(items) >= maxLoopItems {
			return nil, runFailure("Reduce the sequence range.", "For: sequence exceeds %d items", maxLoopItems)
		}
		if integral {
			items = append(items, int(v))
		} else {
			items = append(items, v)
		}
	}
	return items, nil
}

var endForDoc = Doc{
	Name:    "EndFor",
	Summary: "End the For block with the same name.",
	Params:  []ParamDoc{{Name: "Name", Required: true, Description: "Name of the matching For."}},
}

// EndFor closes a loop block.
type EndFor struct{ Base }

func (c *EndFor) ParameterNames() []string { return endForDoc.ParamNames() }
func (c *EndFor) Opens() bool              { return false }
func (c *EndFor) BlockType() string        { return "For" }
func (c *EndFor) BlockName() string        { return c.Params().Value("Name") }

func (c *EndFor) Validate(params *parse.Params) []status.Entry { return endForDoc.Check(params) }

func (c *EndFor) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) {
	return nil, nil
}

var ifDoc = Doc{
	Name:    "If",
	Summary: "Run the commands up to the matching EndIf only when Condition is true. Unresolved or invalid conditions are false.",
	Params: []ParamDoc{
		{Name: "Name", Required: true, Description: "Block name; the matching EndIf must use the same name."},
		{Name: "Condition", Required: true, Description: "Comparison such as ${Count} > 10, or an expression using && and ||."},
	},
}

// If starts a conditional block.
type If struct{ Base }

func (c *If) ParameterNames() []string { return ifDoc.ParamNames() }
func (c *If) Opens() bool              { return true }
func (c *If) BlockType() string        { return "If" }
func (c *If) BlockName() string        { return c.Params().Value("Name") }

func (c *If) Validate(params *parse.Params) []status.Entry { return ifDoc.Check(params) }

func (c *If) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) { return nil, nil }

// Evaluate evaluates the Condition parameter as written, resolving property
// references with expand.
func (c *If) Evaluate(expand eval.Expander) (bool, error) {
	ok, err := eval.Evaluate(c.Params().Value("Condition"), expand)
	if err != nil {
		return false, fmt.Errorf("If %s: %w", c.BlockName(), err)
	}
	return ok, nil
}

var endIfDoc = Doc{
	Name:    "EndIf",
	Summary: "End the If block with the same name.",
	Params:  []ParamDoc{{Name: "Name", Required: true, Description: "Name of the matching If."}},
}

// EndIf closes a conditional block.
type EndIf struct{ Base }

func (c *EndIf) ParameterNames() []string { return endIfDoc.ParamNames() }
func (c *EndIf) Opens() bool              { return false }
func (c *EndIf) BlockType() string        { return "If" }
func (c *EndIf) BlockName() string        { return c.Params().Value("Name") }

func (c *EndIf) Validate(params *parse.Params) []status.Entry { return endIfDoc.Check(params) }

func (c *EndIf) Execute(context.Context, Env, *parse.Params) ([]status.Entry, error) {
	return nil, nil
}
